package dto

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOfferRequest() CreateOfferRequest {
	amount := decimal.RequireFromString("1.5")
	rate := decimal.RequireFromString("45000")
	return CreateOfferRequest{
		BaseCryptocurrency:  "BTC",
		QuoteCryptocurrency: "USDT",
		OfferType:           "sell",
		Amount:              &amount,
		ExchangeRate:        &rate,
		PaymentMethods:      []string{"CryptoTrade wallet", "Bank transfer"},
	}
}

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := validOfferRequest()
	req.BaseCryptocurrency = "  btc "
	req.PaymentMethods = []string{" Bank transfer  "}
	SanitizeStruct(&req)

	assert.Equal(t, "btc", req.BaseCryptocurrency)
	assert.Equal(t, []string{"Bank transfer"}, req.PaymentMethods)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	terms := "  pay within <b>15 min</b> "
	req := validOfferRequest()
	req.Terms = &terms
	SanitizeStruct(&req)

	assert.Equal(t, "pay within &lt;b&gt;15 min&lt;/b&gt;", *req.Terms)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	req := AcceptOfferRequest{PaymentMethod: " PayPal "}
	SanitizeStruct(&req)

	assert.Equal(t, "PayPal", req.PaymentMethod)
	assert.Nil(t, req.Amount)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestCurrency_Valid(t *testing.T) {
	for _, tc := range []string{"BTC", "usdt", "Eth", "1INCH", "BTC2"} {
		assert.True(t, currencyRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestCurrency_Invalid(t *testing.T) {
	for _, tc := range []string{"", "B", "BTC-USD", "BT C", "<script>", "ABCDEFGHIJK"} {
		assert.False(t, currencyRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

func TestCreateOfferRequest_Binding(t *testing.T) {
	req := validOfferRequest()
	require.NoError(t, binding.Validator.ValidateStruct(&req))

	tests := []struct {
		name   string
		mutate func(r *CreateOfferRequest)
	}{
		{"missing amount", func(r *CreateOfferRequest) { r.Amount = nil }},
		{"missing rate", func(r *CreateOfferRequest) { r.ExchangeRate = nil }},
		{"bad currency", func(r *CreateOfferRequest) { r.BaseCryptocurrency = "BTC/USD" }},
		{"same pair", func(r *CreateOfferRequest) { r.QuoteCryptocurrency = "BTC" }},
		{"bad type", func(r *CreateOfferRequest) { r.OfferType = "swap" }},
		{"no methods", func(r *CreateOfferRequest) { r.PaymentMethods = nil }},
		{"blank method", func(r *CreateOfferRequest) { r.PaymentMethods = []string{""} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validOfferRequest()
			tt.mutate(&r)
			assert.Error(t, binding.Validator.ValidateStruct(&r))
		})
	}
}

func TestOfferListQuery_Binding(t *testing.T) {
	assert.NoError(t, binding.Validator.ValidateStruct(&OfferListQuery{}))
	assert.NoError(t, binding.Validator.ValidateStruct(&OfferListQuery{Base: "btc", Type: "buy", Page: 2}))
	assert.Error(t, binding.Validator.ValidateStruct(&OfferListQuery{PageSize: 500}))
	assert.Error(t, binding.Validator.ValidateStruct(&OfferListQuery{Quote: "$$"}))
}

func TestNewOfferListResponse_Pages(t *testing.T) {
	resp := NewOfferListResponse(nil, 41, 1, 20)
	assert.Equal(t, 3, resp.TotalPages)
	assert.NotNil(t, resp.Items)
}
