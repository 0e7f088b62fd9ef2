package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"

	"p2p-exchange/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletLedger moves funds between wallets. Every mutation runs inside the caller's transaction.
type WalletLedger interface {
	Available(ctx context.Context, userID uuid.UUID, currency string, walletType domain.WalletType) (decimal.Decimal, error)
	Wallets(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error)
	HotWallet(ctx context.Context, tx pgx.Tx, userID uuid.UUID, currency string) (*domain.Wallet, error)
	EnsureHotWallet(ctx context.Context, tx pgx.Tx, userID uuid.UUID, currency string) (*domain.Wallet, error)
	Lock(ctx context.Context, tx pgx.Tx, ids ...uuid.UUID) (map[uuid.UUID]*domain.Wallet, error)
	Reserve(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, amount decimal.Decimal) error
	Release(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, amount decimal.Decimal) error
	Transfer(ctx context.Context, tx pgx.Tx, from, to *domain.Wallet, amount decimal.Decimal) error
}

// OfferStore loads offers under row lock and applies status transitions.
type OfferStore interface {
	LoadForUpdate(ctx context.Context, tx pgx.Tx, offerID uuid.UUID) (*domain.TradeOffer, error)
	LoadAnyForUpdate(ctx context.Context, tx pgx.Tx, offerID uuid.UUID) (*domain.TradeOffer, error)
	MarkReserved(ctx context.Context, tx pgx.Tx, offer *domain.TradeOffer, walletID uuid.UUID, amount decimal.Decimal) error
	MarkCompleted(ctx context.Context, tx pgx.Tx, offer *domain.TradeOffer) error
	MarkCancelled(ctx context.Context, tx pgx.Tx, offer *domain.TradeOffer) error
}

// TradeRecorder appends trades and maintains per-user trade stats.
type TradeRecorder interface {
	LoadForUpdate(ctx context.Context, tx pgx.Tx, tradeID uuid.UUID) (*domain.Trade, error)
	Append(ctx context.Context, tx pgx.Tx, trade *domain.Trade) error
	MarkCompleted(ctx context.Context, tx pgx.Tx, trade *domain.Trade) error
	UpdateStats(ctx context.Context, tx pgx.Tx, userIDs ...uuid.UUID) error
}

// --- Service Ports (Business Logic) ---

// SettlementService turns an offer acceptance into a trade.
type SettlementService interface {
	AcceptOffer(ctx context.Context, req AcceptOfferRequest) (*AcceptOfferResult, error)
	ConfirmExternalPayment(ctx context.Context, tradeID, sellerID uuid.UUID) (*domain.Trade, error)
}

// AcceptOfferRequest holds validated input for an offer acceptance.
type AcceptOfferRequest struct {
	OfferID       uuid.UUID
	BuyerID       uuid.UUID
	PaymentMethod string
	Amount        *decimal.Decimal // nil = full offer amount
}

// AcceptOfferResult carries the trade and the HTTP status that describes it.
type AcceptOfferResult struct {
	Trade      *domain.Trade
	HTTPStatus int // 200 completed, 202 awaiting payment confirmation
}

// OfferService manages the offer lifecycle outside settlement.
type OfferService interface {
	CreateOffer(ctx context.Context, req CreateOfferRequest) (*domain.TradeOffer, error)
	CancelOffer(ctx context.Context, offerID, sellerID uuid.UUID) (*domain.TradeOffer, error)
	GetOffer(ctx context.Context, offerID uuid.UUID) (*domain.TradeOffer, error)
	ListActive(ctx context.Context, params OfferListParams) ([]domain.TradeOffer, int64, error)
}

// CreateOfferRequest holds validated input for offer creation.
type CreateOfferRequest struct {
	SellerID            uuid.UUID
	BaseCryptocurrency  string
	QuoteCryptocurrency string
	OfferType           domain.OfferType
	Amount              decimal.Decimal
	ExchangeRate        decimal.Decimal
	PaymentMethods      []string
	Terms               *string
}

// AccountService serves a user's wallets and trade history.
type AccountService interface {
	Available(ctx context.Context, userID uuid.UUID, currency string, walletType domain.WalletType) (decimal.Decimal, error)
	Wallets(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error)
	Trades(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Trade, error)
	Trade(ctx context.Context, tradeID, userID uuid.UUID) (*domain.Trade, error)
}

// TokenService validates bearer tokens issued by the identity provider.
type TokenService interface {
	Generate(userID uuid.UUID, username string) (string, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID   uuid.UUID
	Username string
}

// TradeEventPublisher emits committed trade events to downstream consumers.
type TradeEventPublisher interface {
	Publish(ctx context.Context, event domain.TradeEvent) error
	Close() error
}
