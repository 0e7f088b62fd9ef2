package postgres

import (
	"context"
	"fmt"

	"p2p-exchange/internal/core/domain"
	"p2p-exchange/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const acceptanceBuyerFK = "offer_acceptances_buyer_id_fkey"

// AcceptanceRepo implements ports.AcceptanceRepository.
type AcceptanceRepo struct {
	pool Pool
}

// NewAcceptanceRepo creates a new AcceptanceRepo.
func NewAcceptanceRepo(pool Pool) *AcceptanceRepo {
	return &AcceptanceRepo{pool: pool}
}

// Claim records that a buyer accepted an offer. The (offer_id, buyer_id) unique
// constraint rejects repeats with ports.ErrDuplicate; a concurrent uncommitted
// claim blocks this insert until the other transaction finishes. An unknown
// buyer yields ports.ErrUnknownUser, an unknown offer ports.ErrMissingReference.
func (r *AcceptanceRepo) Claim(ctx context.Context, tx pgx.Tx, a *domain.OfferAcceptance) error {
	query := `INSERT INTO offer_acceptances (id, offer_id, buyer_id, created_at) VALUES ($1, $2, $3, $4)`

	_, err := tx.Exec(ctx, query, a.ID, a.OfferID, a.BuyerID, a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			if pgConstraint(err) == acceptanceBuyerFK {
				return ports.ErrUnknownUser
			}
			return ports.ErrMissingReference
		}
		return fmt.Errorf("insert offer acceptance: %w", err)
	}
	return nil
}
