package service

import (
	"errors"
	"fmt"
	"testing"

	"p2p-exchange/internal/core/ports"
	"p2p-exchange/pkg/apperror"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestStorageError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"state conflict", fmt.Errorf("offer x: %w", ports.ErrStateConflict), apperror.CodeInvariantViolation},
		{"serialization failure", &pgconn.PgError{Code: pgerrcode.SerializationFailure}, apperror.CodeTxConflict},
		{"deadlock", fmt.Errorf("lock: %w", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}), apperror.CodeTxConflict},
		{"other pg error", &pgconn.PgError{Code: pgerrcode.UndefinedTable}, apperror.CodeInternal},
		{"plain error", errors.New("connection refused"), apperror.CodeInternal},
		{"app error passes through", apperror.ErrInsufficientFunds(), apperror.CodeInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storageError("op", tt.err)
			assertAppError(t, err, tt.code)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
