package domain

import "github.com/shopspring/decimal"

// AmountScale is the number of fractional digits kept for every crypto amount.
const AmountScale = 8

// QuoteAmount returns amount × exchangeRate rounded to AmountScale.
func QuoteAmount(amount, exchangeRate decimal.Decimal) decimal.Decimal {
	return amount.Mul(exchangeRate).Round(AmountScale)
}

// SuccessRate returns completed/total as a percentage rounded to 2 decimal places.
// A user without trades has a zero rate.
func SuccessRate(completed, total int64) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(completed * 100).DivRound(decimal.NewFromInt(total), 2)
}

// HasValidScale reports whether d fits into AmountScale fractional digits.
func HasValidScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(AmountScale))
}
