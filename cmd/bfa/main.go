package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/finance-tracker-bfa/internal/config"
	"github.com/boddenberg/finance-tracker-bfa/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa/internal/handler"
	"github.com/boddenberg/finance-tracker-bfa/internal/infra/client"
	"github.com/boddenberg/finance-tracker-bfa/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa/internal/infra/resilience"
	"github.com/boddenberg/finance-tracker-bfa/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("ledger_api_url", cfg.LedgerAPIURL),
		zap.String("currency", cfg.LedgerCurrency),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("resolve_cache_ttl", cfg.ResolveCacheTTL),
		zap.Duration("category_cache_ttl", cfg.CategoryCacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	currency, err := domain.NewCurrency(cfg.LedgerCurrency)
	if err != nil {
		logger.Fatal("invalid currency", zap.Error(err))
	}

	// --- Tracing ---
	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "finance-tracker-bfa")
		if err != nil {
			logger.Fatal("failed to init tracer", zap.Error(err))
		}
		defer shutdown(context.Background())
	}

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("ledger-api", domain.IsDomain)

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	api := client.NewLedgerClient(httpClient, cfg.LedgerAPIURL, cfg.LedgerAPIToken, currency, cb, resilienceCfg)

	// --- Services ---
	ledger := service.NewLedger(api, service.LedgerConfig{
		ResolveTTL:  cfg.ResolveCacheTTL,
		CategoryTTL: cfg.CategoryCacheTTL,
		SettledTTL:  cfg.SettledTTL,
	}, metrics, logger)
	defer ledger.Close()

	// --- Router ---
	router := handler.NewRouter(ledger, currency, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
