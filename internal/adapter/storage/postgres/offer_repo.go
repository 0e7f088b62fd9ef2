package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"p2p-exchange/internal/core/domain"
	"p2p-exchange/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const offerColumns = `id, seller_id, base_cryptocurrency, quote_cryptocurrency, offer_type,
		amount::text, exchange_rate::text, payment_methods, terms, status,
		reserved_wallet_id, reserved_amount::text, created_at, updated_at`

// OfferRepo implements ports.OfferRepository.
type OfferRepo struct {
	pool Pool
}

// NewOfferRepo creates a new OfferRepo.
func NewOfferRepo(pool Pool) *OfferRepo {
	return &OfferRepo{pool: pool}
}

// Create inserts a new offer within a database transaction.
func (r *OfferRepo) Create(ctx context.Context, tx pgx.Tx, o *domain.TradeOffer) error {
	query := `INSERT INTO trade_offers (id, seller_id, base_cryptocurrency, quote_cryptocurrency, offer_type,
		amount, exchange_rate, payment_methods, terms, status, reserved_wallet_id, reserved_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := tx.Exec(ctx, query,
		o.ID, o.SellerID, o.BaseCryptocurrency, o.QuoteCryptocurrency, string(o.OfferType),
		o.Amount.String(), o.ExchangeRate.String(), o.PaymentMethods, o.Terms, string(o.Status),
		o.ReservedWalletID, o.ReservedAmount.String(), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}
	return nil
}

// GetByID fetches an offer by its UUID (without locking).
func (r *OfferRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TradeOffer, error) {
	query := `SELECT ` + offerColumns + ` FROM trade_offers WHERE id = $1`

	return scanOffer(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches an offer by ID with pessimistic locking.
// This MUST be called within a transaction.
// NO KEY UPDATE does not conflict with the KEY SHARE lock the offer_acceptances
// foreign key takes, so buyers that already claimed queue on the row instead of deadlocking.
func (r *OfferRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.TradeOffer, error) {
	query := `SELECT ` + offerColumns + ` FROM trade_offers WHERE id = $1 FOR NO KEY UPDATE`

	return scanOffer(tx.QueryRow(ctx, query, id))
}

// ListActive fetches active offers with optional pair/type filters, newest first.
func (r *OfferRepo) ListActive(ctx context.Context, params ports.OfferListParams) ([]domain.TradeOffer, int64, error) {
	conditions := []string{"status = 'active'"}
	var args []any
	argIdx := 1

	if params.BaseCryptocurrency != "" {
		conditions = append(conditions, fmt.Sprintf("base_cryptocurrency = $%d", argIdx))
		args = append(args, params.BaseCryptocurrency)
		argIdx++
	}
	if params.QuoteCryptocurrency != "" {
		conditions = append(conditions, fmt.Sprintf("quote_cryptocurrency = $%d", argIdx))
		args = append(args, params.QuoteCryptocurrency)
		argIdx++
	}
	if params.OfferType != "" {
		conditions = append(conditions, fmt.Sprintf("offer_type = $%d", argIdx))
		args = append(args, string(params.OfferType))
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM trade_offers "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count offers: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM trade_offers %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		offerColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	var offers []domain.TradeOffer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, 0, err
		}
		offers = append(offers, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate offer rows: %w", err)
	}
	return offers, total, nil
}

// Transition writes the offer's status and reservation, provided the row is still in from.
// Zero matched rows means a concurrent writer got there first: ports.ErrStateConflict.
func (r *OfferRepo) Transition(ctx context.Context, tx pgx.Tx, o *domain.TradeOffer, from domain.OfferStatus) error {
	query := `UPDATE trade_offers
		SET status = $1, reserved_wallet_id = $2, reserved_amount = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5`

	tag, err := tx.Exec(ctx, query,
		string(o.Status), o.ReservedWalletID, o.ReservedAmount.String(), o.ID, string(from),
	)
	if err != nil {
		return fmt.Errorf("update offer status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("offer %s not in status %s: %w", o.ID, from, ports.ErrStateConflict)
	}
	return nil
}

// scanOffer scans a single row into a TradeOffer. pgx.ErrNoRows yields nil, nil.
func scanOffer(row pgx.Row) (*domain.TradeOffer, error) {
	var (
		o                      domain.TradeOffer
		amount, rate, reserved string
	)
	err := row.Scan(
		&o.ID, &o.SellerID, &o.BaseCryptocurrency, &o.QuoteCryptocurrency, &o.OfferType,
		&amount, &rate, &o.PaymentMethods, &o.Terms, &o.Status,
		&o.ReservedWalletID, &reserved, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan offer: %w", err)
	}
	if o.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse offer amount %q: %w", amount, err)
	}
	if o.ExchangeRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("parse offer exchange rate %q: %w", rate, err)
	}
	if o.ReservedAmount, err = decimal.NewFromString(reserved); err != nil {
		return nil, fmt.Errorf("parse offer reserved amount %q: %w", reserved, err)
	}
	return &o, nil
}
