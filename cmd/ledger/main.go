package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/stockledger-go/internal/billing"
	"github.com/boddenberg/stockledger-go/internal/config"
	"github.com/boddenberg/stockledger-go/internal/domain"
	"github.com/boddenberg/stockledger-go/internal/handler"
	"github.com/boddenberg/stockledger-go/internal/infra/cache"
	"github.com/boddenberg/stockledger-go/internal/infra/memstore"
	"github.com/boddenberg/stockledger-go/internal/infra/observability"
	"github.com/boddenberg/stockledger-go/internal/infra/resilience"
	"github.com/boddenberg/stockledger-go/internal/infra/supabase"
	"github.com/boddenberg/stockledger-go/internal/port"
	"github.com/boddenberg/stockledger-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// Money goes out as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("use_supabase", cfg.UseSupabase),
		zap.Bool("dev_auth", cfg.DevAuth),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.String("installment_remainder", string(cfg.InstallmentRemainder)),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	reportCache := cache.New[[]domain.MonthGroup](cfg.CacheTTL)
	defer reportCache.Close()

	// --- Store ---
	var store port.LedgerStore
	if cfg.UseSupabase {
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
		store = supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			resilience.Config{
				MaxRetries:     cfg.MaxRetries,
				InitialBackoff: cfg.InitialBackoff,
				MaxConcurrency: cfg.MaxConcurrency,
			},
			logger,
		)
	} else {
		logger.Warn("USE_SUPABASE=false: data is kept in memory and lost on restart")
		store = memstore.New()
	}

	// --- Services ---
	remainder, _ := billing.ParseRemainderPolicy(string(cfg.InstallmentRemainder))
	ledgerSvc := service.NewLedgerService(store, reportCache, metrics, logger,
		service.WithRemainderPolicy(remainder),
	)

	var verifier handler.TokenVerifier
	if cfg.JWTSecret != "" {
		verifier = service.NewTokenVerifier(cfg.JWTSecret, cfg.JWTAudience)
	}
	if cfg.DevAuth {
		logger.Warn("DEV_AUTH=true: X-Owner-ID header is trusted")
	}

	// --- Router ---
	router := handler.NewRouter(ledgerSvc, handler.AuthMiddleware(verifier, cfg.DevAuth, logger), store, metrics, logger)

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
