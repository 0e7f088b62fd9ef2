package service

import (
	"context"
	"fmt"

	"p2p-exchange/internal/core/domain"
	"p2p-exchange/internal/core/ports"
	"p2p-exchange/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// OfferStore implements ports.OfferStore.
type OfferStore struct {
	offerRepo ports.OfferRepository
}

// NewOfferStore creates a new offer store.
func NewOfferStore(offerRepo ports.OfferRepository) *OfferStore {
	return &OfferStore{offerRepo: offerRepo}
}

// LoadForUpdate locks the offer row and requires it to be active.
func (s *OfferStore) LoadForUpdate(ctx context.Context, tx pgx.Tx, offerID uuid.UUID) (*domain.TradeOffer, error) {
	offer, err := s.LoadAnyForUpdate(ctx, tx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Status != domain.OfferStatusActive {
		return nil, apperror.ErrOfferNotActive()
	}
	return offer, nil
}

// LoadAnyForUpdate locks the offer row whatever its status.
func (s *OfferStore) LoadAnyForUpdate(ctx context.Context, tx pgx.Tx, offerID uuid.UUID) (*domain.TradeOffer, error) {
	offer, err := s.offerRepo.GetByIDForUpdate(ctx, tx, offerID)
	if err != nil {
		return nil, storageError("lock offer", err)
	}
	if offer == nil {
		return nil, apperror.ErrNotFound("Offer")
	}
	return offer, nil
}

// MarkReserved records the held seller funds and moves the offer to reserved.
// Calling it again with the same wallet and amount is a no-op.
func (s *OfferStore) MarkReserved(ctx context.Context, tx pgx.Tx, offer *domain.TradeOffer, walletID uuid.UUID, amount decimal.Decimal) error {
	if offer.Status == domain.OfferStatusReserved {
		if offer.ReservedWalletID != nil && *offer.ReservedWalletID == walletID && offer.ReservedAmount.Equal(amount) {
			return nil
		}
		return apperror.ErrInvariantViolation(
			fmt.Errorf("offer %s already reserved on a different wallet or amount", offer.ID))
	}

	from := offer.Status
	if !from.CanTransitionTo(domain.OfferStatusReserved) {
		return apperror.ErrOfferNotActive()
	}

	offer.Status = domain.OfferStatusReserved
	offer.ReservedWalletID = &walletID
	offer.ReservedAmount = amount
	return s.transition(ctx, tx, offer, from)
}

// MarkCompleted closes the offer after settlement. The reservation is consumed.
func (s *OfferStore) MarkCompleted(ctx context.Context, tx pgx.Tx, offer *domain.TradeOffer) error {
	from := offer.Status
	if !from.CanTransitionTo(domain.OfferStatusCompleted) {
		return apperror.ErrInvariantViolation(fmt.Errorf("offer %s cannot complete from %s", offer.ID, from))
	}

	offer.Status = domain.OfferStatusCompleted
	offer.ReservedWalletID = nil
	offer.ReservedAmount = decimal.Zero
	return s.transition(ctx, tx, offer, from)
}

// MarkCancelled withdraws an active offer. The caller releases any reservation first.
func (s *OfferStore) MarkCancelled(ctx context.Context, tx pgx.Tx, offer *domain.TradeOffer) error {
	from := offer.Status
	if !from.CanTransitionTo(domain.OfferStatusCancelled) {
		return apperror.ErrOfferNotActive()
	}

	offer.Status = domain.OfferStatusCancelled
	offer.ReservedWalletID = nil
	offer.ReservedAmount = decimal.Zero
	return s.transition(ctx, tx, offer, from)
}

func (s *OfferStore) transition(ctx context.Context, tx pgx.Tx, offer *domain.TradeOffer, from domain.OfferStatus) error {
	if err := s.offerRepo.Transition(ctx, tx, offer, from); err != nil {
		return storageError(fmt.Sprintf("offer %s %s->%s", offer.ID, from, offer.Status), err)
	}
	return nil
}
