package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"p2p-exchange/internal/core/domain"
	"p2p-exchange/internal/core/ports"
	"p2p-exchange/internal/core/ports/mocks"
	"p2p-exchange/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testToken = "good_token"

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	router     *gin.Engine
	userID     uuid.UUID
	offers     *mocks.MockOfferService
	settlement *mocks.MockSettlementService
	accounts   *mocks.MockAccountService
}

func newTestAPI(t *testing.T, checkers ...ports.HealthChecker) *testAPI {
	ctrl := gomock.NewController(t)
	api := &testAPI{
		userID:     uuid.New(),
		offers:     mocks.NewMockOfferService(ctrl),
		settlement: mocks.NewMockSettlementService(ctrl),
		accounts:   mocks.NewMockAccountService(ctrl),
	}

	tokens := mocks.NewMockTokenService(ctrl)
	tokens.EXPECT().Validate(testToken).Return(&ports.TokenClaims{UserID: api.userID, Username: "alice"}, nil).AnyTimes()
	tokens.EXPECT().Validate(gomock.Not(testToken)).Return(nil, errors.New("bad token")).AnyTimes()

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "p2p_test_total", Help: "test"}))

	api.router = SetupRouter(RouterDeps{
		OfferSvc:       api.offers,
		SettlementSvc:  api.settlement,
		AccountSvc:     api.accounts,
		TokenSvc:       tokens,
		HealthCheckers: checkers,
		Metrics:        registry,
		Logger:         zerolog.Nop(),
	})
	return api
}

func (a *testAPI) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "body: %s", w.Body.String())
	return data
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

func sampleOffer(sellerID uuid.UUID) *domain.TradeOffer {
	now := time.Now().UTC()
	return &domain.TradeOffer{
		ID:                  uuid.New(),
		SellerID:            sellerID,
		BaseCryptocurrency:  "BTC",
		QuoteCryptocurrency: "USDT",
		OfferType:           domain.OfferTypeSell,
		Amount:              decimal.RequireFromString("1.5"),
		ExchangeRate:        decimal.RequireFromString("45000"),
		PaymentMethods:      []string{string(domain.PaymentMethodWallet), "Bank transfer"},
		Status:              domain.OfferStatusActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func sampleTrade(offer *domain.TradeOffer, buyerID uuid.UUID, method domain.PaymentMethod) *domain.Trade {
	return domain.NewTrade(offer, buyerID, method)
}

// --- Auth ---

func TestRouter_RequiresToken(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/offers", nil)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.CodeInvalidToken, decodeErrorCode(t, w))
}

func TestHandlers_MissingUserID(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewOfferHandler(mocks.NewMockOfferService(ctrl), mocks.NewMockSettlementService(ctrl))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	h.Create(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- Offers ---

func TestCreateOffer_Success(t *testing.T) {
	api := newTestAPI(t)
	offer := sampleOffer(api.userID)

	api.offers.EXPECT().CreateOffer(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.CreateOfferRequest) (*domain.TradeOffer, error) {
			assert.Equal(t, api.userID, req.SellerID)
			assert.Equal(t, "btc", req.BaseCryptocurrency)
			assert.Equal(t, domain.OfferTypeSell, req.OfferType)
			assert.True(t, decimal.RequireFromString("1.5").Equal(req.Amount))
			assert.Equal(t, []string{"CryptoTrade wallet", "Bank transfer"}, req.PaymentMethods)
			return offer, nil
		})

	w := api.do(http.MethodPost, "/api/v1/offers", map[string]interface{}{
		"base_cryptocurrency":  "btc",
		"quote_cryptocurrency": "usdt",
		"offer_type":           "sell",
		"amount":               "1.5",
		"exchange_rate":        "45000",
		"payment_methods":      []string{"CryptoTrade wallet", " Bank transfer "},
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := decodeData(t, w)
	assert.Equal(t, offer.ID.String(), data["id"])
	assert.Equal(t, "67500.00000000", data["quote_amount"])
	assert.Equal(t, "active", data["status"])
}

func TestCreateOffer_ValidationError(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/v1/offers", map[string]interface{}{
		"base_cryptocurrency":  "BTC",
		"quote_cryptocurrency": "USDT",
		"offer_type":           "sell",
		"exchange_rate":        "45000",
		"payment_methods":      []string{"PayPal"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeInvalidOffer, decodeErrorCode(t, w))
}

func TestListOffers(t *testing.T) {
	api := newTestAPI(t)
	offer := sampleOffer(uuid.New())

	api.offers.EXPECT().ListActive(gomock.Any(), ports.OfferListParams{
		BaseCryptocurrency: "BTC",
		OfferType:          domain.OfferTypeSell,
		Page:               2,
		PageSize:           20,
	}).Return([]domain.TradeOffer{*offer}, int64(21), nil)

	w := api.do(http.MethodGet, "/api/v1/offers?base=BTC&type=sell&page=2", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeData(t, w)
	assert.Equal(t, float64(21), data["total"])
	assert.Equal(t, float64(2), data["total_pages"])
	assert.Len(t, data["items"], 1)
}

func TestGetOffer_NotFound(t *testing.T) {
	api := newTestAPI(t)
	id := uuid.New()

	api.offers.EXPECT().GetOffer(gomock.Any(), id).Return(nil, apperror.ErrNotFound("Offer"))

	w := api.do(http.MethodGet, "/api/v1/offers/"+id.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeNotFound, decodeErrorCode(t, w))
}

func TestGetOffer_MalformedID(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/api/v1/offers/not-a-uuid", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelOffer(t *testing.T) {
	api := newTestAPI(t)
	offer := sampleOffer(api.userID)
	offer.Status = domain.OfferStatusCancelled

	api.offers.EXPECT().CancelOffer(gomock.Any(), offer.ID, api.userID).Return(offer, nil)

	w := api.do(http.MethodDelete, "/api/v1/offers/"+offer.ID.String(), nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", decodeData(t, w)["status"])
}

func TestCancelOffer_NotOwner(t *testing.T) {
	api := newTestAPI(t)
	id := uuid.New()

	api.offers.EXPECT().CancelOffer(gomock.Any(), id, api.userID).Return(nil, apperror.ErrNotOfferOwner())

	w := api.do(http.MethodDelete, "/api/v1/offers/"+id.String(), nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

// --- Acceptance ---

func TestAcceptOffer_WalletCompleted(t *testing.T) {
	api := newTestAPI(t)
	offer := sampleOffer(uuid.New())
	trade := sampleTrade(offer, api.userID, domain.PaymentMethodWallet)
	trade.Status = domain.TradeStatusCompleted

	api.settlement.EXPECT().AcceptOffer(gomock.Any(), ports.AcceptOfferRequest{
		OfferID:       offer.ID,
		BuyerID:       api.userID,
		PaymentMethod: "CryptoTrade wallet",
	}).Return(&ports.AcceptOfferResult{Trade: trade, HTTPStatus: http.StatusOK}, nil)

	w := api.do(http.MethodPost, "/api/v1/offers/"+offer.ID.String()+"/accept", map[string]string{
		"payment_method": "CryptoTrade wallet",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeData(t, w)
	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, "67500.00000000", data["quote_amount"])
	assert.Equal(t, api.userID.String(), data["buyer_id"])
}

func TestAcceptOffer_ExternalPending(t *testing.T) {
	api := newTestAPI(t)
	offer := sampleOffer(uuid.New())
	trade := sampleTrade(offer, api.userID, "Bank transfer")

	api.settlement.EXPECT().AcceptOffer(gomock.Any(), gomock.Any()).
		Return(&ports.AcceptOfferResult{Trade: trade, HTTPStatus: http.StatusAccepted}, nil)

	w := api.do(http.MethodPost, "/api/v1/offers/"+offer.ID.String()+"/accept", map[string]string{
		"payment_method": "Bank transfer",
	})

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "pending", decodeData(t, w)["status"])
}

func TestAcceptOffer_MissingPaymentMethod(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/v1/offers/"+uuid.NewString()+"/accept", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeInvalidPaymentMethod, decodeErrorCode(t, w))
}

func TestAcceptOffer_ServiceErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"already accepted", apperror.ErrAlreadyAccepted(), http.StatusConflict, apperror.CodeAlreadyAccepted},
		{"insufficient funds", apperror.ErrInsufficientFunds(), http.StatusPaymentRequired, apperror.CodeInsufficientFunds},
		{"own offer", apperror.ErrOwnOffer(), http.StatusBadRequest, apperror.CodeOwnOffer},
		{"conflict", apperror.ErrTxConflict(errors.New("40001")), http.StatusServiceUnavailable, apperror.CodeTxConflict},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, apperror.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			api.settlement.EXPECT().AcceptOffer(gomock.Any(), gomock.Any()).Return(nil, tt.err)

			w := api.do(http.MethodPost, "/api/v1/offers/"+uuid.NewString()+"/accept", map[string]string{
				"payment_method": "PayPal",
			})

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, decodeErrorCode(t, w))
		})
	}
}

// --- Trades ---

func TestConfirmTrade(t *testing.T) {
	api := newTestAPI(t)
	offer := sampleOffer(api.userID)
	trade := sampleTrade(offer, uuid.New(), "Bank transfer")
	now := time.Now().UTC()
	trade.Status = domain.TradeStatusCompleted
	trade.CompletedAt = &now

	api.settlement.EXPECT().ConfirmExternalPayment(gomock.Any(), trade.ID, api.userID).Return(trade, nil)

	w := api.do(http.MethodPost, "/api/v1/trades/"+trade.ID.String()+"/confirm", nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "completed", data["status"])
	assert.NotEmpty(t, data["completed_at"])
}

func TestConfirmTrade_NotPending(t *testing.T) {
	api := newTestAPI(t)
	id := uuid.New()

	api.settlement.EXPECT().ConfirmExternalPayment(gomock.Any(), id, api.userID).Return(nil, apperror.ErrTradeNotPending())

	w := api.do(http.MethodPost, "/api/v1/trades/"+id.String()+"/confirm", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeTradeNotPending, decodeErrorCode(t, w))
}

func TestListTrades(t *testing.T) {
	api := newTestAPI(t)
	trade := sampleTrade(sampleOffer(uuid.New()), api.userID, "PayPal")

	api.accounts.EXPECT().Trades(gomock.Any(), api.userID, 5).Return([]domain.Trade{*trade}, nil)

	w := api.do(http.MethodGet, "/api/v1/trades?limit=5", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, trade.ID.String(), resp.Data[0]["id"])
}

func TestGetTrade(t *testing.T) {
	api := newTestAPI(t)
	trade := sampleTrade(sampleOffer(uuid.New()), api.userID, "PayPal")

	api.accounts.EXPECT().Trade(gomock.Any(), trade.ID, api.userID).Return(trade, nil)

	w := api.do(http.MethodGet, "/api/v1/trades/"+trade.ID.String(), nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PayPal", decodeData(t, w)["payment_method"])
}

// --- Wallets ---

func TestListWallets(t *testing.T) {
	api := newTestAPI(t)
	w1 := domain.NewHotWallet(api.userID, "BTC")
	w1.Balance = decimal.RequireFromString("2")
	w1.ReservedBalance = decimal.RequireFromString("0.5")

	api.accounts.EXPECT().Wallets(gomock.Any(), api.userID).Return([]domain.Wallet{*w1}, nil)

	w := api.do(http.MethodGet, "/api/v1/wallets", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "1.5", resp.Data[0]["available"])
}

func TestAvailableBalance(t *testing.T) {
	api := newTestAPI(t)

	api.accounts.EXPECT().Available(gomock.Any(), api.userID, "BTC", domain.WalletTypeHot).
		Return(decimal.RequireFromString("0.25"), nil)

	w := api.do(http.MethodGet, "/api/v1/wallets/available?currency=btc", nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "0.25", data["available"])
	assert.Equal(t, "BTC", data["cryptocurrency"])
}

func TestAvailableBalance_BadInput(t *testing.T) {
	api := newTestAPI(t)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/v1/wallets/available", nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/v1/wallets/available?currency=BTC&type=warm", nil).Code)
}

// --- Health & metrics ---

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	pg := mocks.NewMockHealthChecker(ctrl)
	pg.EXPECT().Ping(gomock.Any()).Return(nil)
	pg.EXPECT().Name().Return("postgresql").AnyTimes()

	api := newTestAPI(t, pg)
	w := api.do(http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestHealthCheck_Degraded(t *testing.T) {
	ctrl := gomock.NewController(t)
	pg := mocks.NewMockHealthChecker(ctrl)
	pg.EXPECT().Ping(gomock.Any()).Return(nil)
	pg.EXPECT().Name().Return("postgresql").AnyTimes()
	rd := mocks.NewMockHealthChecker(ctrl)
	rd.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))
	rd.EXPECT().Name().Return("redis").AnyTimes()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	HealthCheck(pg, rd)(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp struct {
		Status       string                       `json:"status"`
		Dependencies map[string]map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "healthy", resp.Dependencies["postgresql"]["status"])
	assert.Equal(t, "connection refused", resp.Dependencies["redis"]["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)

	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "p2p_test_total")
}
