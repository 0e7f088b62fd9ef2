package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestQuoteAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		rate   string
		want   string
	}{
		{"whole btc", "1", "45000", "45000"},
		{"fractional btc", "1.5", "45000", "67500"},
		{"rounds to 8 places", "0.12345678", "1.23456789", "0.15241579"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuoteAmount(dec(tt.amount), dec(tt.rate))
			assert.True(t, dec(tt.want).Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestQuoteAmount_ScenarioFormatting(t *testing.T) {
	got := QuoteAmount(dec("1.5"), dec("45000"))
	assert.Equal(t, "67500.00000000", got.StringFixed(AmountScale))
}

func TestSuccessRate(t *testing.T) {
	tests := []struct {
		name      string
		completed int64
		total     int64
		want      string
	}{
		{"no trades", 0, 0, "0"},
		{"all completed", 4, 4, "100"},
		{"two thirds", 2, 3, "66.67"},
		{"one third", 1, 3, "33.33"},
		{"half", 1, 2, "50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuccessRate(tt.completed, tt.total)
			assert.True(t, dec(tt.want).Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestHasValidScale(t *testing.T) {
	assert.True(t, HasValidScale(dec("1.12345678")))
	assert.False(t, HasValidScale(dec("1.123456789")))
}

func TestWallet_Available(t *testing.T) {
	w := &Wallet{Balance: dec("10"), ReservedBalance: dec("2.5")}
	assert.True(t, dec("7.5").Equal(w.Available()))
	assert.True(t, w.Consistent())

	w.ReservedBalance = dec("11")
	assert.False(t, w.Consistent())

	w.ReservedBalance = dec("-1")
	assert.False(t, w.Consistent())
}

func TestNewHotWallet(t *testing.T) {
	userID := uuid.New()
	w := NewHotWallet(userID, " btc ")

	assert.Equal(t, userID, w.UserID)
	assert.Equal(t, "BTC", w.Cryptocurrency)
	assert.Equal(t, WalletTypeHot, w.WalletType)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.ReservedBalance.IsZero())
	assert.NotEmpty(t, w.Address)
}

func TestParseWalletType(t *testing.T) {
	wt, ok := ParseWalletType(" HOT ")
	require.True(t, ok)
	assert.Equal(t, WalletTypeHot, wt)

	wt, ok = ParseWalletType("cold")
	require.True(t, ok)
	assert.Equal(t, WalletTypeCold, wt)

	_, ok = ParseWalletType("paper")
	assert.False(t, ok)
}

func TestParsePaymentMethod(t *testing.T) {
	tests := []struct {
		input string
		want  PaymentMethod
		kind  PaymentKind
		ok    bool
	}{
		{"CryptoTrade wallet", PaymentMethodWallet, PaymentKindWallet, true},
		{"cryptotrade WALLET", PaymentMethodWallet, PaymentKindWallet, true},
		{"Bank transfer", PaymentMethodBankTransfer, PaymentKindExternal, true},
		{" PayPal ", PaymentMethodPayPal, PaymentKindExternal, true},
		{"carrier pigeon", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParsePaymentMethod(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.kind, got.Kind())
		})
	}
}

func TestPaymentMethod_Valid(t *testing.T) {
	assert.True(t, PaymentMethodWise.Valid())
	assert.False(t, PaymentMethod("Venmo").Valid())
	assert.Equal(t, "unknown", PaymentMethod("Venmo").Kind().String())
}

func TestOfferStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from OfferStatus
		to   OfferStatus
		want bool
	}{
		{OfferStatusActive, OfferStatusReserved, true},
		{OfferStatusActive, OfferStatusCompleted, true},
		{OfferStatusActive, OfferStatusCancelled, true},
		{OfferStatusReserved, OfferStatusCompleted, true},
		{OfferStatusReserved, OfferStatusCancelled, false},
		{OfferStatusReserved, OfferStatusActive, false},
		{OfferStatusCompleted, OfferStatusActive, false},
		{OfferStatusCompleted, OfferStatusCancelled, false},
		{OfferStatusCancelled, OfferStatusActive, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOfferStatus_IsTerminal(t *testing.T) {
	assert.False(t, OfferStatusActive.IsTerminal())
	assert.False(t, OfferStatusReserved.IsTerminal())
	assert.True(t, OfferStatusCompleted.IsTerminal())
	assert.True(t, OfferStatusCancelled.IsTerminal())
}

func TestTradeOffer_Accepts(t *testing.T) {
	o := &TradeOffer{PaymentMethods: []string{"CryptoTrade wallet", "bank transfer"}}

	assert.True(t, o.Accepts(PaymentMethodWallet))
	assert.True(t, o.Accepts(PaymentMethodBankTransfer))
	assert.False(t, o.Accepts(PaymentMethodPayPal))
}

func TestTradeOffer_IsReserved(t *testing.T) {
	o := &TradeOffer{}
	assert.False(t, o.IsReserved())

	walletID := uuid.New()
	o.ReservedWalletID = &walletID
	o.ReservedAmount = dec("1")
	assert.True(t, o.IsReserved())
}

func TestNewTrade(t *testing.T) {
	offer := &TradeOffer{
		ID:                  uuid.New(),
		SellerID:            uuid.New(),
		BaseCryptocurrency:  "BTC",
		QuoteCryptocurrency: "USDT",
		Amount:              dec("1.5"),
		ExchangeRate:        dec("45000"),
	}
	buyerID := uuid.New()

	t.Run("wallet trade is completed", func(t *testing.T) {
		tr := NewTrade(offer, buyerID, PaymentMethodWallet)
		assert.Equal(t, TradeStatusCompleted, tr.Status)
		require.NotNil(t, tr.CompletedAt)
		assert.False(t, tr.IsPending())
		assert.True(t, dec("67500").Equal(tr.QuoteAmount))
		assert.Equal(t, offer.SellerID, tr.SellerID)
		assert.Equal(t, buyerID, tr.BuyerID)
	})

	t.Run("external trade is pending", func(t *testing.T) {
		tr := NewTrade(offer, buyerID, PaymentMethodBankTransfer)
		assert.Equal(t, TradeStatusPending, tr.Status)
		assert.Nil(t, tr.CompletedAt)
		assert.True(t, tr.IsPending())
	})
}

func TestTradeStats_SuccessRate(t *testing.T) {
	s := TradeStats{CompletedTrades: 3, TotalTrades: 4}
	assert.True(t, dec("75").Equal(s.SuccessRate()))
}

func TestNewTradeEvent(t *testing.T) {
	offer := &TradeOffer{ID: uuid.New(), SellerID: uuid.New(), Amount: dec("2"), ExchangeRate: dec("10")}

	completed := NewTrade(offer, uuid.New(), PaymentMethodWallet)
	ev := NewTradeEvent(completed)
	assert.Equal(t, TradeEventCompleted, ev.Type)
	assert.Equal(t, completed.ID, ev.TradeID)
	assert.True(t, dec("20").Equal(ev.QuoteAmount))

	pending := NewTrade(offer, uuid.New(), PaymentMethodPayPal)
	assert.Equal(t, TradeEventPending, NewTradeEvent(pending).Type)
}
