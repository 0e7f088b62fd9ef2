package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeStatus represents the settlement state of a trade.
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "pending"
	TradeStatusCompleted TradeStatus = "completed"
)

// Trade is the append-only record of a settled (or payment-pending) offer acceptance.
type Trade struct {
	ID                  uuid.UUID       `json:"id"`
	OfferID             uuid.UUID       `json:"offer_id"`
	BuyerID             uuid.UUID       `json:"buyer_id"`
	SellerID            uuid.UUID       `json:"seller_id"`
	BaseCryptocurrency  string          `json:"base_cryptocurrency"`
	QuoteCryptocurrency string          `json:"quote_cryptocurrency"`
	Amount              decimal.Decimal `json:"amount"`
	ExchangeRate        decimal.Decimal `json:"exchange_rate"`
	QuoteAmount         decimal.Decimal `json:"quote_amount"`
	PaymentMethod       PaymentMethod   `json:"payment_method"`
	Status              TradeStatus     `json:"status"`
	CreatedAt           time.Time       `json:"created_at"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
}

// NewTrade snapshots the offer terms at settlement time.
// Wallet-funded trades are created completed; external ones pending.
func NewTrade(offer *TradeOffer, buyerID uuid.UUID, method PaymentMethod) *Trade {
	now := time.Now().UTC()
	t := &Trade{
		ID:                  uuid.New(),
		OfferID:             offer.ID,
		BuyerID:             buyerID,
		SellerID:            offer.SellerID,
		BaseCryptocurrency:  offer.BaseCryptocurrency,
		QuoteCryptocurrency: offer.QuoteCryptocurrency,
		Amount:              offer.Amount,
		ExchangeRate:        offer.ExchangeRate,
		QuoteAmount:         offer.QuoteAmount(),
		PaymentMethod:       method,
		Status:              TradeStatusPending,
		CreatedAt:           now,
	}
	if method.Kind() == PaymentKindWallet {
		t.Status = TradeStatusCompleted
		t.CompletedAt = &now
	}
	return t
}

// IsPending returns true while the trade awaits external payment confirmation.
func (t *Trade) IsPending() bool {
	return t.Status == TradeStatusPending
}
