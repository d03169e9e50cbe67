package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/richboost/boosting-core/internal/api"
	"github.com/richboost/boosting-core/internal/api/middleware"
	"github.com/richboost/boosting-core/internal/config"
	"github.com/richboost/boosting-core/internal/db"
	"github.com/richboost/boosting-core/internal/idempotency"
	"github.com/richboost/boosting-core/internal/observability"
	"github.com/richboost/boosting-core/internal/rates"
	"github.com/richboost/boosting-core/internal/repository"
	"github.com/richboost/boosting-core/internal/service"
	"github.com/richboost/boosting-core/internal/worker"
)

// Run bootstraps the HTTP server and background workers, blocking until
// shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	store := repository.NewStore(pool)
	idemStore := idempotency.NewStore(redisClient, store.Queries(), cfg.IdempotencyTTL)
	rateCache := rates.NewCache(rates.NewHTTPSource(cfg.RateAPIURL, cfg.RateAPITimeout), cfg.RateCacheTTL)

	settingsSvc := service.NewSettingsService(store)
	if err := settingsSvc.Seed(ctx); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	if err := settingsSvc.Reload(ctx); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	pricingSvc := service.NewPricingService(settingsSvc)
	accountSvc := service.NewAccountService(store)
	ledgerSvc := service.NewLedgerService(store, settingsSvc)
	orderSvc := service.NewOrderService(store, pricingSvc, settingsSvc, rateCache)
	promoSvc := service.NewPromoService(store)
	payoutSvc := service.NewPayoutService(store, rateCache)
	topupSvc := service.NewTopupService(store, settingsSvc)
	reconciliationSvc := service.NewReconciliationService(store)

	stopReload := worker.NewSettingsReloadWorker(settingsSvc).
		WithInterval(cfg.SettingsReloadInterval).Run(ctx)
	stopSweep := worker.NewPromoSweepWorker(promoSvc).
		WithInterval(cfg.PromoSweepInterval).Run(ctx)
	stopReconciliation := worker.NewReconciliationWorker(reconciliationSvc).
		WithInterval(cfg.ReconciliationInterval).Run(ctx)
	stopPurge := worker.NewIdempotencyPurgeWorker(idemStore).Run(ctx)

	router := api.NewRouter(api.Deps{
		DB:          pool,
		Redis:       redisClient,
		Idempotency: idemStore,
		Logger:      logger,

		Accounts: accountSvc,
		Ledger:   ledgerSvc,
		Pricing:  pricingSvc,
		Orders:   orderSvc,
		Promos:   promoSvc,
		Payouts:  payoutSvc,
		Topups:   topupSvc,
		Settings: settingsSvc,

		PublicRateLimitRPS: cfg.PublicRateLimitRPS,
		AuthRateLimitRPS:   cfg.AuthRateLimitRPS,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping workers")
	stopReload()
	stopSweep()
	stopReconciliation()
	stopPurge()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
