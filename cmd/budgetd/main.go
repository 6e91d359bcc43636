package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledgerline/budget-engine/internal/config"
	"github.com/ledgerline/budget-engine/internal/domain"
	"github.com/ledgerline/budget-engine/internal/handler"
	"github.com/ledgerline/budget-engine/internal/infra/cache"
	"github.com/ledgerline/budget-engine/internal/infra/observability"
	"github.com/ledgerline/budget-engine/internal/infra/resilience"
	"github.com/ledgerline/budget-engine/internal/infra/supabase"
	"github.com/ledgerline/budget-engine/internal/service"

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
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Float64("variance_minor", cfg.Variance.MinorThreshold),
		zap.Float64("variance_moderate", cfg.Variance.ModerateThreshold),
		zap.Float64("variance_significant", cfg.Variance.SignificantThreshold),
		zap.Float64("forecast_trend_growth", cfg.Forecast.TrendGrowthRate),
	)

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required: the engine has no data backend without it")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "budget-engine")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	accountCache := cache.New[*domain.Account](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("supabase")

	// --- Store ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	store := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		cb,
		resilienceCfg,
		logger,
	)
	logger.Info("using Supabase as document store", zap.String("supabase_url", cfg.SupabaseURL))

	// --- Service ---
	budgetSvc := service.NewBudgetService(
		store,
		store,
		store,
		accountCache,
		cfg.Variance,
		cfg.Forecast,
		metrics,
		logger,
	)

	// --- Router ---
	router := handler.NewRouter(budgetSvc, metrics, cfg.JWTSecret, logger)

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
