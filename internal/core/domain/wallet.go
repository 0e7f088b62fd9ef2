package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletType distinguishes on-platform hot wallets from cold storage.
type WalletType string

const (
	WalletTypeHot  WalletType = "hot"
	WalletTypeCold WalletType = "cold"
)

// ParseWalletType normalises a wallet type string.
func ParseWalletType(s string) (WalletType, bool) {
	switch WalletType(strings.ToLower(strings.TrimSpace(s))) {
	case WalletTypeHot:
		return WalletTypeHot, true
	case WalletTypeCold:
		return WalletTypeCold, true
	default:
		return "", false
	}
}

// Wallet holds a user's balance in one cryptocurrency.
// Invariant: Balance >= ReservedBalance >= 0.
type Wallet struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	Cryptocurrency  string          `json:"cryptocurrency"`
	WalletType      WalletType      `json:"wallet_type"`
	Address         string          `json:"address"`
	Balance         decimal.Decimal `json:"balance"`
	ReservedBalance decimal.Decimal `json:"reserved_balance"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Available returns the balance not held by reservations.
func (w *Wallet) Available() decimal.Decimal {
	return w.Balance.Sub(w.ReservedBalance)
}

// Consistent reports whether the balance invariant holds.
func (w *Wallet) Consistent() bool {
	return !w.ReservedBalance.IsNegative() && w.Balance.GreaterThanOrEqual(w.ReservedBalance)
}

// NewHotWallet builds an empty hot wallet, as provisioned on signup or on first receipt.
func NewHotWallet(userID uuid.UUID, currency string) *Wallet {
	now := time.Now().UTC()
	id := uuid.New()
	return &Wallet{
		ID:              id,
		UserID:          userID,
		Cryptocurrency:  NormalizeCurrency(currency),
		WalletType:      WalletTypeHot,
		Address:         "internal:" + id.String(),
		Balance:         decimal.Zero,
		ReservedBalance: decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NormalizeCurrency upper-cases and trims a currency ticker.
func NormalizeCurrency(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}
