package service

import (
	"errors"
	"fmt"

	"p2p-exchange/internal/core/ports"
	"p2p-exchange/pkg/apperror"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// storageError maps a repository failure onto the error taxonomy.
// AppErrors pass through untouched.
func storageError(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}

	wrapped := fmt.Errorf("%s: %w", op, err)

	if errors.Is(err, ports.ErrStateConflict) {
		return apperror.ErrInvariantViolation(wrapped)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
			return apperror.ErrTxConflict(wrapped)
		}
	}

	return apperror.InternalError(wrapped)
}
