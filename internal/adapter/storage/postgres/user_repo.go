package postgres

import (
	"context"
	"errors"
	"fmt"

	"p2p-exchange/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	pool Pool
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(pool Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// GetByID fetches a user by UUID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT id, username, completed_trades, success_rate::text, created_at FROM users WHERE id = $1`

	var (
		u    domain.User
		rate string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Username, &u.CompletedTrades, &rate, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	if u.SuccessRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("parse success rate %q: %w", rate, err)
	}
	return &u, nil
}

// UpdateStats writes recomputed trade stats within a transaction.
func (r *UserRepo) UpdateStats(ctx context.Context, tx pgx.Tx, userID uuid.UUID, completedTrades int64, successRate decimal.Decimal) error {
	query := `UPDATE users SET completed_trades = $1, success_rate = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, completedTrades, successRate.StringFixed(2), userID)
	if err != nil {
		return fmt.Errorf("update user stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}
	return nil
}

// Create inserts a user. Signup lives in the identity service; this is used for provisioning and tests.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	query := `INSERT INTO users (id, username, completed_trades, success_rate, created_at) VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query, u.ID, u.Username, u.CompletedTrades, u.SuccessRate.StringFixed(2), u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}
