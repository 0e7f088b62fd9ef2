package postgres

import (
	"context"
	"errors"
	"fmt"

	"p2p-exchange/internal/core/domain"
	"p2p-exchange/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const tradeColumns = `id, offer_id, buyer_id, seller_id, base_cryptocurrency, quote_cryptocurrency,
		amount::text, exchange_rate::text, quote_amount::text, payment_method, status, created_at, completed_at`

// TradeRepo implements ports.TradeRepository.
type TradeRepo struct {
	pool Pool
}

// NewTradeRepo creates a new TradeRepo.
func NewTradeRepo(pool Pool) *TradeRepo {
	return &TradeRepo{pool: pool}
}

// Create appends a trade within a database transaction.
// A second completed trade for the same offer surfaces as ports.ErrDuplicate.
func (r *TradeRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Trade) error {
	query := `INSERT INTO trades (id, offer_id, buyer_id, seller_id, base_cryptocurrency, quote_cryptocurrency,
		amount, exchange_rate, quote_amount, payment_method, status, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.OfferID, t.BuyerID, t.SellerID, t.BaseCryptocurrency, t.QuoteCryptocurrency,
		t.Amount.String(), t.ExchangeRate.String(), t.QuoteAmount.String(),
		string(t.PaymentMethod), string(t.Status), t.CreatedAt, t.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetByID fetches a trade by UUID.
func (r *TradeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1`

	return scanTrade(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a trade by ID with pessimistic locking.
func (r *TradeRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1 FOR UPDATE`

	return scanTrade(tx.QueryRow(ctx, query, id))
}

// ListByUser returns the user's trades as buyer or seller, newest first.
func (r *TradeRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC, id LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}

// MarkCompleted moves a pending trade to completed within a transaction.
func (r *TradeRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, t *domain.Trade) error {
	query := `UPDATE trades SET status = 'completed', completed_at = $1 WHERE id = $2 AND status = 'pending'`

	tag, err := tx.Exec(ctx, query, t.CompletedAt, t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("complete trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("trade %s not pending: %w", t.ID, ports.ErrStateConflict)
	}
	return nil
}

// CountByUser aggregates the user's trade history as buyer or seller.
func (r *TradeRepo) CountByUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (domain.TradeStats, error) {
	query := `SELECT
		COUNT(*) FILTER (WHERE status = 'completed') AS completed,
		COUNT(*) AS total
		FROM trades WHERE buyer_id = $1 OR seller_id = $1`

	var stats domain.TradeStats
	if err := tx.QueryRow(ctx, query, userID).Scan(&stats.CompletedTrades, &stats.TotalTrades); err != nil {
		return domain.TradeStats{}, fmt.Errorf("count trades: %w", err)
	}
	return stats, nil
}

// scanTrade scans a single row into a Trade. pgx.ErrNoRows yields nil, nil.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var (
		t                   domain.Trade
		amount, rate, quote string
	)
	err := row.Scan(
		&t.ID, &t.OfferID, &t.BuyerID, &t.SellerID, &t.BaseCryptocurrency, &t.QuoteCryptocurrency,
		&amount, &rate, &quote, &t.PaymentMethod, &t.Status, &t.CreatedAt, &t.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan trade: %w", err)
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse trade amount %q: %w", amount, err)
	}
	if t.ExchangeRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("parse trade exchange rate %q: %w", rate, err)
	}
	if t.QuoteAmount, err = decimal.NewFromString(quote); err != nil {
		return nil, fmt.Errorf("parse trade quote amount %q: %w", quote, err)
	}
	return &t, nil
}
