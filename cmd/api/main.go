package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"p2p-exchange/config"
	httpHandler "p2p-exchange/internal/adapter/http/handler"
	"p2p-exchange/internal/adapter/http/middleware"
	"p2p-exchange/internal/adapter/messaging/kafka"
	pgStorage "p2p-exchange/internal/adapter/storage/postgres"
	redisStorage "p2p-exchange/internal/adapter/storage/redis"
	"p2p-exchange/internal/core/ports"
	"p2p-exchange/internal/service"
	"p2p-exchange/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ./config.yaml or ./config/config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting P2P exchange")

	ctx := context.Background()

	if cfg.Database.AutoMigrate {
		if err := pgStorage.MigrateUp(ctx, cfg.Database.DSN(), logger.Component(log, "migrate")); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	healthCheckers := []ports.HealthChecker{pgStorage.NewHealthCheck(pool)}

	// Rate limiting is off without Redis.
	var rateLimitStore middleware.Limiter
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled, rate limiting off")
	}

	var publisher ports.TradeEventPublisher = kafka.NoopPublisher{}
	if cfg.Kafka.Enabled {
		publisher = kafka.NewTradePublisher(cfg.Kafka, logger.Component(log, "kafka"))
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Trade events published to Kafka")
	}
	defer publisher.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := service.NewMetrics(registry)

	// Repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	offerRepo := pgStorage.NewOfferRepo(pool)
	acceptRepo := pgStorage.NewAcceptanceRepo(pool)
	tradeRepo := pgStorage.NewTradeRepo(pool)
	userRepo := pgStorage.NewUserRepo(pool)
	transactor := pgStorage.NewTransactor(pool, cfg.Database.Isolation)

	// Settlement building blocks
	ledger := service.NewLedger(walletRepo, logger.Component(log, "ledger"))
	offerStore := service.NewOfferStore(offerRepo)
	tradeRecorder := service.NewTradeRecorder(tradeRepo, userRepo)

	settlementSvc := service.NewSettlementService(
		transactor,
		acceptRepo,
		offerStore,
		ledger,
		tradeRecorder,
		publisher,
		metrics,
		cfg.Settlement,
		logger.Component(log, "settlement"),
	)
	offerSvc := service.NewOfferService(transactor, offerRepo, offerStore, ledger, metrics, logger.Component(log, "offers"))
	accountSvc := service.NewAccountService(ledger, tradeRepo)
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	deps := httpHandler.RouterDeps{
		OfferSvc:       offerSvc,
		SettlementSvc:  settlementSvc,
		AccountSvc:     accountSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		RateLimit:      cfg.RateLimit,
		HealthCheckers: healthCheckers,
		Logger:         log,
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = registry
		deps.MetricsPath = cfg.Metrics.Path
	}
	router := httpHandler.SetupRouter(deps)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
