package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"p2p-exchange/internal/core/domain"
	"p2p-exchange/internal/core/ports"
	"p2p-exchange/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Ledger implements ports.WalletLedger on top of the wallet repository.
// It never opens or commits a transaction of its own.
type Ledger struct {
	walletRepo ports.WalletRepository
	log        zerolog.Logger
}

// NewLedger creates a new wallet ledger.
func NewLedger(walletRepo ports.WalletRepository, log zerolog.Logger) *Ledger {
	return &Ledger{walletRepo: walletRepo, log: log}
}

// Available returns balance minus reservations for the user's wallets of one type.
func (l *Ledger) Available(ctx context.Context, userID uuid.UUID, currency string, walletType domain.WalletType) (decimal.Decimal, error) {
	amount, err := l.walletRepo.SumAvailable(ctx, userID, domain.NormalizeCurrency(currency), walletType)
	if err != nil {
		return decimal.Zero, storageError("sum available", err)
	}
	return amount, nil
}

// Wallets lists every wallet the user owns.
func (l *Ledger) Wallets(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error) {
	wallets, err := l.walletRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, storageError("list wallets", err)
	}
	return wallets, nil
}

// HotWallet returns the user's hot wallet for currency, or nil if there is none.
func (l *Ledger) HotWallet(ctx context.Context, tx pgx.Tx, userID uuid.UUID, currency string) (*domain.Wallet, error) {
	w, err := l.walletRepo.GetHot(ctx, tx, userID, domain.NormalizeCurrency(currency))
	if err != nil {
		return nil, storageError("get hot wallet", err)
	}
	return w, nil
}

// EnsureHotWallet returns the user's hot wallet for currency, creating an empty one when missing.
func (l *Ledger) EnsureHotWallet(ctx context.Context, tx pgx.Tx, userID uuid.UUID, currency string) (*domain.Wallet, error) {
	w, err := l.HotWallet(ctx, tx, userID, currency)
	if err != nil || w != nil {
		return w, err
	}

	w = domain.NewHotWallet(userID, currency)
	if err := l.walletRepo.Create(ctx, tx, w); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			// A concurrent transaction provisioned it first; the current transaction is aborted.
			return nil, apperror.ErrTxConflict(fmt.Errorf("provision hot wallet %s/%s: %w", userID, w.Cryptocurrency, err))
		}
		return nil, storageError("create hot wallet", err)
	}

	l.log.Info().
		Str("user_id", userID.String()).
		Str("wallet_id", w.ID.String()).
		Str("currency", w.Cryptocurrency).
		Msg("Hot wallet provisioned")

	return w, nil
}

// Lock takes row locks on the given wallets in ascending id order.
// This ordering replaces a fixed seller-then-buyer wallet order for every caller,
// so settlement and confirmation always acquire overlapping wallets in the same sequence.
func (l *Ledger) Lock(ctx context.Context, tx pgx.Tx, ids ...uuid.UUID) (map[uuid.UUID]*domain.Wallet, error) {
	ordered := sortedUnique(ids)

	wallets, err := l.walletRepo.LockByIDs(ctx, tx, ordered)
	if err != nil {
		return nil, storageError("lock wallets", err)
	}

	locked := make(map[uuid.UUID]*domain.Wallet, len(wallets))
	for i := range wallets {
		locked[wallets[i].ID] = &wallets[i]
	}
	for _, id := range ordered {
		if _, ok := locked[id]; !ok {
			return nil, apperror.ErrInvariantViolation(fmt.Errorf("wallet %s disappeared before lock", id))
		}
	}

	return locked, nil
}

// Reserve holds amount of the wallet's balance.
func (l *Ledger) Reserve(ctx context.Context, tx pgx.Tx, w *domain.Wallet, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.ErrInvalidAmount()
	}

	reserved := w.ReservedBalance.Add(amount)
	if reserved.GreaterThan(w.Balance) {
		return apperror.ErrInsufficientFunds()
	}

	w.ReservedBalance = reserved
	return l.persist(ctx, tx, w)
}

// Release returns amount of a reservation to the available balance.
func (l *Ledger) Release(ctx context.Context, tx pgx.Tx, w *domain.Wallet, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.ErrInvalidAmount()
	}

	reserved := w.ReservedBalance.Sub(amount)
	if reserved.IsNegative() {
		return apperror.ErrInvariantViolation(
			fmt.Errorf("release %s from wallet %s exceeds reservation %s", amount, w.ID, w.ReservedBalance))
	}

	w.ReservedBalance = reserved
	return l.persist(ctx, tx, w)
}

// Transfer consumes amount of from's reservation and credits it to to.
func (l *Ledger) Transfer(ctx context.Context, tx pgx.Tx, from, to *domain.Wallet, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.ErrInvalidAmount()
	}
	if from.ID == to.ID {
		return apperror.ErrInvariantViolation(fmt.Errorf("transfer from wallet %s to itself", from.ID))
	}
	if from.Cryptocurrency != to.Cryptocurrency {
		return apperror.ErrInvariantViolation(
			fmt.Errorf("transfer between %s and %s wallets", from.Cryptocurrency, to.Cryptocurrency))
	}
	if from.Balance.LessThan(amount) {
		return apperror.ErrInsufficientFunds()
	}
	if from.ReservedBalance.LessThan(amount) {
		return apperror.ErrInvariantViolation(
			fmt.Errorf("transfer %s from wallet %s exceeds reservation %s", amount, from.ID, from.ReservedBalance))
	}

	from.Balance = from.Balance.Sub(amount)
	from.ReservedBalance = from.ReservedBalance.Sub(amount)
	to.Balance = to.Balance.Add(amount)

	if err := l.persist(ctx, tx, from); err != nil {
		return err
	}
	return l.persist(ctx, tx, to)
}

func (l *Ledger) persist(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	if !w.Consistent() {
		return apperror.ErrInvariantViolation(
			fmt.Errorf("wallet %s balance %s reserved %s", w.ID, w.Balance, w.ReservedBalance))
	}
	if err := l.walletRepo.UpdateBalances(ctx, tx, w); err != nil {
		return storageError("update wallet balances", err)
	}
	return nil
}

// sortedUnique returns ids without duplicates in the byte order PostgreSQL uses for uuid.
func sortedUnique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
