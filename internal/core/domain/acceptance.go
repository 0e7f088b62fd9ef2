package domain

import (
	"time"

	"github.com/google/uuid"
)

// OfferAcceptance is the durable claim a buyer places on an offer.
// (OfferID, BuyerID) is unique.
type OfferAcceptance struct {
	ID        uuid.UUID `json:"id"`
	OfferID   uuid.UUID `json:"offer_id"`
	BuyerID   uuid.UUID `json:"buyer_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewOfferAcceptance builds a claim for buyerID on offerID.
func NewOfferAcceptance(offerID, buyerID uuid.UUID) *OfferAcceptance {
	return &OfferAcceptance{
		ID:        uuid.New(),
		OfferID:   offerID,
		BuyerID:   buyerID,
		CreatedAt: time.Now().UTC(),
	}
}
