package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeEventType names a trade lifecycle event.
type TradeEventType string

const (
	TradeEventPending   TradeEventType = "trade.pending"
	TradeEventCompleted TradeEventType = "trade.completed"
)

// TradeEvent is published after a settlement transaction commits.
type TradeEvent struct {
	Type                TradeEventType  `json:"type"`
	TradeID             uuid.UUID       `json:"trade_id"`
	OfferID             uuid.UUID       `json:"offer_id"`
	BuyerID             uuid.UUID       `json:"buyer_id"`
	SellerID            uuid.UUID       `json:"seller_id"`
	BaseCryptocurrency  string          `json:"base_cryptocurrency"`
	QuoteCryptocurrency string          `json:"quote_cryptocurrency"`
	Amount              decimal.Decimal `json:"amount"`
	QuoteAmount         decimal.Decimal `json:"quote_amount"`
	PaymentMethod       PaymentMethod   `json:"payment_method"`
	OccurredAt          time.Time       `json:"occurred_at"`
}

// NewTradeEvent derives the event from a trade's current status.
func NewTradeEvent(t *Trade) TradeEvent {
	typ := TradeEventPending
	if t.Status == TradeStatusCompleted {
		typ = TradeEventCompleted
	}
	return TradeEvent{
		Type:                typ,
		TradeID:             t.ID,
		OfferID:             t.OfferID,
		BuyerID:             t.BuyerID,
		SellerID:            t.SellerID,
		BaseCryptocurrency:  t.BaseCryptocurrency,
		QuoteCryptocurrency: t.QuoteCryptocurrency,
		Amount:              t.Amount,
		QuoteAmount:         t.QuoteAmount,
		PaymentMethod:       t.PaymentMethod,
		OccurredAt:          time.Now().UTC(),
	}
}
