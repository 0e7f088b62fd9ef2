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

const walletColumns = `id, user_id, cryptocurrency, wallet_type, address,
		balance::text, reserved_balance::text, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a new wallet within a database transaction.
// A second hot wallet for the same user and currency surfaces as ports.ErrDuplicate.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, user_id, cryptocurrency, wallet_type, address,
		balance, reserved_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.UserID, w.Cryptocurrency, string(w.WalletType), w.Address,
		w.Balance.String(), w.ReservedBalance.String(), w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// ListByUser returns all wallets of a user (non-locking read).
func (r *WalletRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1
		ORDER BY cryptocurrency, wallet_type, id`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	return collectWallets(rows)
}

// SumAvailable returns balance minus reservations summed over the user's wallets
// of the given currency and type. Zero when no wallet matches.
func (r *WalletRepo) SumAvailable(ctx context.Context, userID uuid.UUID, currency string, walletType domain.WalletType) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(balance - reserved_balance), 0)::text FROM wallets
		WHERE user_id = $1 AND cryptocurrency = $2 AND wallet_type = $3`

	var raw string
	if err := r.pool.QueryRow(ctx, query, userID, currency, string(walletType)).Scan(&raw); err != nil {
		return decimal.Zero, fmt.Errorf("sum available balance: %w", err)
	}
	available, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse available balance %q: %w", raw, err)
	}
	return available, nil
}

// GetHot fetches the user's hot wallet for a currency inside tx without locking it.
// Locking is done separately, in id order, by LockByIDs.
func (r *WalletRepo) GetHot(ctx context.Context, tx pgx.Tx, userID uuid.UUID, currency string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets
		WHERE user_id = $1 AND cryptocurrency = $2 AND wallet_type = 'hot'`

	return scanWallet(tx.QueryRow(ctx, query, userID, currency))
}

// LockByIDs takes row locks on the given wallets in ascending id order.
// This MUST be called within a transaction.
func (r *WalletRepo) LockByIDs(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) ([]domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets
		WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	rows, err := tx.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("lock wallets: %w", err)
	}
	defer rows.Close()

	return collectWallets(rows)
}

// UpdateBalances writes balance and reserved balance within a transaction.
// A violated balance CHECK surfaces as ports.ErrStateConflict.
func (r *WalletRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `UPDATE wallets SET balance = $1, reserved_balance = $2, updated_at = NOW() WHERE id = $3`

	tag, err := tx.Exec(ctx, query, w.Balance.String(), w.ReservedBalance.String(), w.ID)
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("wallet %s balance constraint: %w", w.ID, ports.ErrStateConflict)
		}
		return fmt.Errorf("update wallet balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", w.ID)
	}
	return nil
}

func collectWallets(rows pgx.Rows) ([]domain.Wallet, error) {
	var wallets []domain.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return wallets, nil
}

// scanWallet scans a single row into a Wallet. pgx.ErrNoRows yields nil, nil.
func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var (
		w                 domain.Wallet
		balance, reserved string
	)
	err := row.Scan(
		&w.ID, &w.UserID, &w.Cryptocurrency, &w.WalletType, &w.Address,
		&balance, &reserved, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	if w.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parse wallet balance %q: %w", balance, err)
	}
	if w.ReservedBalance, err = decimal.NewFromString(reserved); err != nil {
		return nil, fmt.Errorf("parse wallet reserved balance %q: %w", reserved, err)
	}
	return &w, nil
}
