package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor, opening every unit of work at a fixed isolation level.
type Transactor struct {
	pool Pool
	opts pgx.TxOptions
}

// NewTransactor creates a Transactor. isolation is one of serializable,
// repeatable_read or read_committed; anything else falls back to serializable.
func NewTransactor(pool Pool, isolation string) *Transactor {
	return &Transactor{pool: pool, opts: pgx.TxOptions{IsoLevel: IsoLevel(isolation)}}
}

// Begin starts a new database transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.BeginTx(ctx, t.opts)
	if err != nil {
		return nil, fmt.Errorf("begin %s transaction: %w", t.opts.IsoLevel, err)
	}
	return tx, nil
}

// IsoLevel maps a config value to a pgx isolation level.
func IsoLevel(isolation string) pgx.TxIsoLevel {
	switch isolation {
	case "read_committed":
		return pgx.ReadCommitted
	case "repeatable_read":
		return pgx.RepeatableRead
	default:
		return pgx.Serializable
	}
}
