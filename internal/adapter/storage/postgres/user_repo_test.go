package postgres

import (
	"context"
	"testing"
	"time"

	"p2p-exchange/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepo(mock)
	id := uuid.New()
	created := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT id, username, completed_trades").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "completed_trades", "success_rate", "created_at"}).
			AddRow(id, "alice", int64(4), "75.00", created))

	u, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, int64(4), u.CompletedTrades)
	assert.True(t, decimal.RequireFromString("75").Equal(u.SuccessRate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT id, username").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "completed_trades", "success_rate", "created_at"}))

	u, err := repo.GetByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, u)
}

func TestUserRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepo(mock)
	u := &domain.User{ID: uuid.New(), Username: "bob", SuccessRate: decimal.Zero, CreatedAt: time.Now().UTC()}

	mock.ExpectExec("INSERT INTO users").
		WithArgs(u.ID, "bob", int64(0), "0.00", u.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), u))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_UpdateStats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET completed_trades").
		WithArgs(int64(2), "66.67", id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStats(context.Background(), tx, id, 2, domain.SuccessRate(2, 3)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_UpdateStats_UnknownUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET completed_trades").
		WithArgs(int64(1), "100.00", id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStats(context.Background(), tx, id, 1, domain.SuccessRate(1, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user not found")
}
