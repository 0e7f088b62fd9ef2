package handler

import (
	"p2p-exchange/config"
	"p2p-exchange/internal/adapter/http/middleware"
	"p2p-exchange/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	OfferSvc       ports.OfferService
	SettlementSvc  ports.SettlementService
	AccountSvc     ports.AccountService
	TokenSvc       ports.TokenService
	RateLimitStore middleware.Limiter // nil = rate limiting disabled
	RateLimit      config.RateLimitConfig
	HealthCheckers []ports.HealthChecker
	Metrics        prometheus.Gatherer // nil = /metrics not exposed
	MetricsPath    string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	if deps.Metrics != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{})))
	}

	rules := middleware.RateLimitRules(deps.RateLimit)

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rules[group], deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	v1 := r.Group("/api/v1", jwtAuth)

	offerHandler := NewOfferHandler(deps.OfferSvc, deps.SettlementSvc)
	offers := v1.Group("/offers")
	{
		offers.GET("", offerHandler.List)
		offers.POST("", rl(middleware.GroupOffers), offerHandler.Create)
		offers.GET("/:id", offerHandler.Get)
		offers.DELETE("/:id", rl(middleware.GroupOffers), offerHandler.Cancel)
		offers.POST("/:id/accept", rl(middleware.GroupAccept), offerHandler.Accept)
	}

	tradeHandler := NewTradeHandler(deps.AccountSvc, deps.SettlementSvc)
	trades := v1.Group("/trades")
	{
		trades.GET("", tradeHandler.List)
		trades.GET("/:id", tradeHandler.Get)
		trades.POST("/:id/confirm", rl(middleware.GroupAccept), tradeHandler.Confirm)
	}

	walletHandler := NewWalletHandler(deps.AccountSvc)
	wallets := v1.Group("/wallets")
	{
		wallets.GET("", walletHandler.List)
		wallets.GET("/available", walletHandler.Available)
	}

	return r
}
