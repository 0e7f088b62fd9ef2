package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"p2p-exchange/config"
	httpHandler "p2p-exchange/internal/adapter/http/handler"
	redisStorage "p2p-exchange/internal/adapter/storage/redis"
	"p2p-exchange/internal/core/domain"
	"p2p-exchange/internal/core/ports"
	"p2p-exchange/internal/service"
	"p2p-exchange/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// testApp wires the real services, handlers and middleware over the in-memory store.
type testApp struct {
	store      *memStore
	server     *httptest.Server
	tokens     *service.JWTTokenService
	settlement *service.SettlementService
	offers     *service.OfferService
	accounts   ports.AccountService
	events     *recordingPublisher
	registry   *prometheus.Registry
}

// recordingPublisher collects published trade events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.TradeEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event domain.TradeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) all() []domain.TradeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.TradeEvent(nil), p.events...)
}

type appOption func(*httpHandler.RouterDeps)

// withRedisRateLimit backs the rate limiter with miniredis.
func withRedisRateLimit(t *testing.T, cfg config.RateLimitConfig) appOption {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return func(deps *httpHandler.RouterDeps) {
		deps.RateLimitStore = redisStorage.NewRateLimitStore(rdb)
		deps.RateLimit = cfg
	}
}

func newTestApp(t *testing.T, opts ...appOption) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	log := logger.New("error", false)

	transactor := &memTransactor{store: store}
	walletRepo := &memWalletRepo{store: store}
	offerRepo := &memOfferRepo{store: store}
	tradeRepo := &memTradeRepo{store: store}

	registry := prometheus.NewRegistry()
	metrics := service.NewMetrics(registry)
	events := &recordingPublisher{}

	ledger := service.NewLedger(walletRepo, log)
	offerStore := service.NewOfferStore(offerRepo)
	recorder := service.NewTradeRecorder(tradeRepo, &memUserRepo{store: store})

	settlement := service.NewSettlementService(
		transactor, &memAcceptanceRepo{store: store}, offerStore, ledger, recorder,
		events, metrics, config.SettlementConfig{MaxAttempts: 2, RetryDelay: time.Millisecond}, log,
	)
	offers := service.NewOfferService(transactor, offerRepo, offerStore, ledger, metrics, log)
	accounts := service.NewAccountService(ledger, tradeRepo)
	tokens := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", time.Hour, "test-issuer")

	deps := httpHandler.RouterDeps{
		OfferSvc:      offers,
		SettlementSvc: settlement,
		AccountSvc:    accounts,
		TokenSvc:      tokens,
		Metrics:       registry,
		Logger:        log,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	app := &testApp{
		store:      store,
		server:     httptest.NewServer(httpHandler.SetupRouter(deps)),
		tokens:     tokens,
		settlement: settlement,
		offers:     offers,
		accounts:   accounts,
		events:     events,
		registry:   registry,
	}
	t.Cleanup(app.server.Close)
	return app
}

// user registers a user and returns its id and a bearer token.
func (a *testApp) user(t *testing.T, name string) (uuid.UUID, string) {
	t.Helper()
	id := a.store.addUser(name)
	token, err := a.tokens.Generate(id, name)
	require.NoError(t, err)
	return id, token
}

type apiResponse struct {
	Status    int
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
	Message   string          `json:"message"`
}

func (a *testApp) call(t *testing.T, method, path, token string, body interface{}) apiResponse {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := apiResponse{Status: resp.StatusCode}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return out
}

func decodeInto(t *testing.T, r apiResponse, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, v), string(r.Data))
}

type offerBody struct {
	ID             string   `json:"id"`
	Status         string   `json:"status"`
	QuoteAmount    string   `json:"quote_amount"`
	PaymentMethods []string `json:"payment_methods"`
}

type tradeBody struct {
	ID            string `json:"id"`
	OfferID       string `json:"offer_id"`
	BuyerID       string `json:"buyer_id"`
	SellerID      string `json:"seller_id"`
	Amount        string `json:"amount"`
	QuoteAmount   string `json:"quote_amount"`
	PaymentMethod string `json:"payment_method"`
	Status        string `json:"status"`
	CompletedAt   string `json:"completed_at"`
}
