package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"p2p-exchange/internal/core/domain"
	"p2p-exchange/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWallet(userID uuid.UUID, currency, balance, reserved string) *domain.Wallet {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Wallet{
		ID:              uuid.New(),
		UserID:          userID,
		Cryptocurrency:  currency,
		WalletType:      domain.WalletTypeHot,
		Address:         "internal:test",
		Balance:         decimal.RequireFromString(balance),
		ReservedBalance: decimal.RequireFromString(reserved),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func walletCols() []string {
	return []string{"id", "user_id", "cryptocurrency", "wallet_type", "address",
		"balance", "reserved_balance", "created_at", "updated_at"}
}

func walletRows(ws ...*domain.Wallet) *pgxmock.Rows {
	rows := pgxmock.NewRows(walletCols())
	for _, w := range ws {
		rows.AddRow(w.ID, w.UserID, w.Cryptocurrency, string(w.WalletType), w.Address,
			w.Balance.String(), w.ReservedBalance.String(), w.CreatedAt, w.UpdatedAt)
	}
	return rows
}

func TestWalletRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New(), "BTC", "0", "0")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO wallets").
		WithArgs(w.ID, w.UserID, "BTC", "hot", w.Address, "0", "0", w.CreatedAt, w.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.Create(context.Background(), tx, w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Create_DuplicateHotWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New(), "BTC", "0", "0")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO wallets").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, w)
	assert.ErrorIs(t, err, ports.ErrDuplicate)
}

func TestWalletRepo_ListByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	userID := uuid.New()
	btc := newTestWallet(userID, "BTC", "2.5", "1")
	usdt := newTestWallet(userID, "USDT", "100000", "0")

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE user_id").
		WithArgs(userID).
		WillReturnRows(walletRows(btc, usdt))

	wallets, err := repo.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	assert.True(t, decimal.RequireFromString("2.5").Equal(wallets[0].Balance))
	assert.True(t, decimal.RequireFromString("1").Equal(wallets[0].ReservedBalance))
	assert.Equal(t, domain.WalletTypeHot, wallets[1].WalletType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_SumAvailable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	userID := uuid.New()

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(userID, "BTC", "cold").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow("3.25000000"))

	got, err := repo.SumAvailable(context.Background(), userID, "BTC", domain.WalletTypeCold)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("3.25").Equal(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetHot_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM wallets").
		WithArgs(userID, "ETH").
		WillReturnRows(pgxmock.NewRows(walletCols()))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	w, err := repo.GetHot(context.Background(), tx, userID, "ETH")
	assert.NoError(t, err)
	assert.Nil(t, w)
}

func TestWalletRepo_LockByIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	a := newTestWallet(uuid.New(), "BTC", "1", "0")
	b := newTestWallet(uuid.New(), "USDT", "10", "0")
	ids := []uuid.UUID{a.ID, b.ID}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM wallets\\s+WHERE id = ANY\\(\\$1\\) ORDER BY id FOR UPDATE").
		WithArgs(ids).
		WillReturnRows(walletRows(a, b))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	locked, err := repo.LockByIDs(context.Background(), tx, ids)
	require.NoError(t, err)
	require.Len(t, locked, 2)
	assert.Equal(t, a.ID, locked[0].ID)
	assert.Equal(t, b.ID, locked[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_UpdateBalances(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New(), "BTC", "1.5", "0.5")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets SET balance").
		WithArgs("1.5", "0.5", w.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.UpdateBalances(context.Background(), tx, w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_UpdateBalances_CheckViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New(), "BTC", "1", "2")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets SET balance").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.CheckViolation})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateBalances(context.Background(), tx, w)
	assert.ErrorIs(t, err, ports.ErrStateConflict)
}

func TestWalletRepo_UpdateBalances_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New(), "BTC", "1", "0")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets SET balance").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateBalances(context.Background(), tx, w)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ports.ErrStateConflict))
	assert.Contains(t, err.Error(), "wallet not found")
}
