package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"

	"p2p-exchange/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UserRepository reads users and writes their trade stats.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdateStats(ctx context.Context, tx pgx.Tx, userID uuid.UUID, completedTrades int64, successRate decimal.Decimal) error
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error)
	SumAvailable(ctx context.Context, userID uuid.UUID, currency string, walletType domain.WalletType) (decimal.Decimal, error)
	GetHot(ctx context.Context, tx pgx.Tx, userID uuid.UUID, currency string) (*domain.Wallet, error)
	// LockByIDs locks the rows in ascending id order and returns them in that order.
	LockByIDs(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) ([]domain.Wallet, error)
	UpdateBalances(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
}

// OfferRepository defines persistence operations for trade offers.
type OfferRepository interface {
	Create(ctx context.Context, tx pgx.Tx, offer *domain.TradeOffer) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TradeOffer, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.TradeOffer, error)
	ListActive(ctx context.Context, params OfferListParams) ([]domain.TradeOffer, int64, error)
	// Transition persists offer's status and reservation, guarded on the row still being in from.
	Transition(ctx context.Context, tx pgx.Tx, offer *domain.TradeOffer, from domain.OfferStatus) error
}

// OfferListParams holds filter + pagination for listing active offers.
type OfferListParams struct {
	BaseCryptocurrency  string
	QuoteCryptocurrency string
	OfferType           domain.OfferType
	Page                int
	PageSize            int
}

// AcceptanceRepository records buyer claims on offers.
type AcceptanceRepository interface {
	// Claim inserts the (offer, buyer) pair; ErrDuplicate when it already exists.
	Claim(ctx context.Context, tx pgx.Tx, acceptance *domain.OfferAcceptance) error
}

// TradeRepository defines persistence operations for trades.
type TradeRepository interface {
	Create(ctx context.Context, tx pgx.Tx, trade *domain.Trade) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Trade, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Trade, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Trade, error)
	// MarkCompleted moves a pending trade to completed; ErrStateConflict if it was not pending.
	MarkCompleted(ctx context.Context, tx pgx.Tx, trade *domain.Trade) error
	CountByUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (domain.TradeStats, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
