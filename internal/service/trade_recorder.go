package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"p2p-exchange/internal/core/domain"
	"p2p-exchange/internal/core/ports"
	"p2p-exchange/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TradeRecorder implements ports.TradeRecorder.
// Trades are append-only; the pending→completed move is the single permitted update.
type TradeRecorder struct {
	tradeRepo ports.TradeRepository
	userRepo  ports.UserRepository
}

// NewTradeRecorder creates a new trade recorder.
func NewTradeRecorder(tradeRepo ports.TradeRepository, userRepo ports.UserRepository) *TradeRecorder {
	return &TradeRecorder{tradeRepo: tradeRepo, userRepo: userRepo}
}

// LoadForUpdate locks the trade row.
func (r *TradeRecorder) LoadForUpdate(ctx context.Context, tx pgx.Tx, tradeID uuid.UUID) (*domain.Trade, error) {
	trade, err := r.tradeRepo.GetByIDForUpdate(ctx, tx, tradeID)
	if err != nil {
		return nil, storageError("lock trade", err)
	}
	if trade == nil {
		return nil, apperror.ErrNotFound("Trade")
	}
	return trade, nil
}

// Append inserts a new trade record.
func (r *TradeRecorder) Append(ctx context.Context, tx pgx.Tx, trade *domain.Trade) error {
	if err := r.tradeRepo.Create(ctx, tx, trade); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return apperror.ErrInvariantViolation(
				fmt.Errorf("offer %s already has a completed trade: %w", trade.OfferID, err))
		}
		return storageError("append trade", err)
	}
	return nil
}

// MarkCompleted settles a pending trade.
func (r *TradeRecorder) MarkCompleted(ctx context.Context, tx pgx.Tx, trade *domain.Trade) error {
	if !trade.IsPending() {
		return apperror.ErrTradeNotPending()
	}

	now := time.Now().UTC()
	trade.Status = domain.TradeStatusCompleted
	trade.CompletedAt = &now

	if err := r.tradeRepo.MarkCompleted(ctx, tx, trade); err != nil {
		return storageError("complete trade", err)
	}
	return nil
}

// UpdateStats recomputes completed trades and success rate for each user from trade history.
// Users are written in ascending id order.
func (r *TradeRecorder) UpdateStats(ctx context.Context, tx pgx.Tx, userIDs ...uuid.UUID) error {
	for _, userID := range sortedUnique(userIDs) {
		stats, err := r.tradeRepo.CountByUser(ctx, tx, userID)
		if err != nil {
			return storageError("count trades", err)
		}
		if err := r.userRepo.UpdateStats(ctx, tx, userID, stats.CompletedTrades, stats.SuccessRate()); err != nil {
			return storageError("update user stats", err)
		}
	}
	return nil
}
