package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OfferType is the side the offer creator takes.
type OfferType string

const (
	OfferTypeBuy  OfferType = "buy"
	OfferTypeSell OfferType = "sell"
)

// Valid reports whether t is a known offer type.
func (t OfferType) Valid() bool {
	return t == OfferTypeBuy || t == OfferTypeSell
}

// OfferStatus is the lifecycle state of a trade offer.
type OfferStatus string

const (
	OfferStatusActive    OfferStatus = "active"
	OfferStatusReserved  OfferStatus = "reserved"
	OfferStatusCompleted OfferStatus = "completed"
	OfferStatusCancelled OfferStatus = "cancelled"
)

// offerTransitions lists the legal moves out of each state.
// active→completed is taken by wallet-funded settlement, which reserves and completes in one unit of work.
var offerTransitions = map[OfferStatus][]OfferStatus{
	OfferStatusActive:   {OfferStatusReserved, OfferStatusCompleted, OfferStatusCancelled},
	OfferStatusReserved: {OfferStatusCompleted},
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s OfferStatus) CanTransitionTo(next OfferStatus) bool {
	for _, allowed := range offerTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true for completed and cancelled offers.
func (s OfferStatus) IsTerminal() bool {
	return s == OfferStatusCompleted || s == OfferStatusCancelled
}

// TradeOffer is a seller's standing proposal to sell Amount of BaseCryptocurrency
// for QuoteCryptocurrency at ExchangeRate.
type TradeOffer struct {
	ID                  uuid.UUID       `json:"id"`
	SellerID            uuid.UUID       `json:"seller_id"`
	BaseCryptocurrency  string          `json:"base_cryptocurrency"`
	QuoteCryptocurrency string          `json:"quote_cryptocurrency"`
	OfferType           OfferType       `json:"offer_type"`
	Amount              decimal.Decimal `json:"amount"`
	ExchangeRate        decimal.Decimal `json:"exchange_rate"`
	PaymentMethods      []string        `json:"payment_methods"`
	Terms               *string         `json:"terms,omitempty"`
	Status              OfferStatus     `json:"status"`
	ReservedWalletID    *uuid.UUID      `json:"reserved_wallet_id,omitempty"`
	ReservedAmount      decimal.Decimal `json:"reserved_amount"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// QuoteAmount is what a buyer pays for the full offer.
func (o *TradeOffer) QuoteAmount() decimal.Decimal {
	return QuoteAmount(o.Amount, o.ExchangeRate)
}

// Accepts reports whether m is one of the offer's payment methods.
func (o *TradeOffer) Accepts(m PaymentMethod) bool {
	for _, raw := range o.PaymentMethods {
		if pm, ok := ParsePaymentMethod(raw); ok && pm == m {
			return true
		}
	}
	return false
}

// IsReserved returns true once seller funds are held for this offer.
func (o *TradeOffer) IsReserved() bool {
	return o.ReservedWalletID != nil && o.ReservedAmount.IsPositive()
}
