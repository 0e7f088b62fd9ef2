package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User is a marketplace participant. Only the trade stats are owned by this service.
type User struct {
	ID              uuid.UUID       `json:"id"`
	Username        string          `json:"username"`
	CompletedTrades int64           `json:"completed_trades"`
	SuccessRate     decimal.Decimal `json:"success_rate"`
	CreatedAt       time.Time       `json:"created_at"`
}

// TradeStats is the aggregate recomputed from trade history.
type TradeStats struct {
	CompletedTrades int64
	TotalTrades     int64
}

// SuccessRate returns the percentage of completed trades.
func (s TradeStats) SuccessRate() decimal.Decimal {
	return SuccessRate(s.CompletedTrades, s.TotalTrades)
}
