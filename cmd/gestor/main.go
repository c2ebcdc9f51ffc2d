package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/felipemotter/gestor-sub001/internal/config"
	"github.com/felipemotter/gestor-sub001/internal/domain"
	"github.com/felipemotter/gestor-sub001/internal/handler"
	"github.com/felipemotter/gestor-sub001/internal/infra/cache"
	"github.com/felipemotter/gestor-sub001/internal/infra/observability"
	"github.com/felipemotter/gestor-sub001/internal/infra/resilience"
	"github.com/felipemotter/gestor-sub001/internal/infra/supabase"
	"github.com/felipemotter/gestor-sub001/internal/port"
	"github.com/felipemotter/gestor-sub001/internal/reconcile"
	"github.com/felipemotter/gestor-sub001/internal/rules"
	"github.com/felipemotter/gestor-sub001/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Config ---
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("use_supabase", cfg.UseSupabase()),
		zap.Bool("auth_enabled", cfg.JWTSecret != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Int("rule_workers", cfg.RuleWorkers),
		zap.Int("reconcile_date_tolerance_days", cfg.Reconciliation.DateToleranceDays),
		zap.String("reconcile_amount_tolerance", cfg.Reconciliation.AmountTolerance.String()),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "gestor")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	patternCache := cache.New[*regexp.Regexp](0) // compiled patterns never go stale
	defer patternCache.Close()
	ruleCache := cache.New[[]domain.Rule](cfg.CacheTTL)
	defer ruleCache.Close()

	// --- Engine ---
	matcher := rules.NewMatcher(
		rules.WithPatternCache(patternCache),
		rules.WithCacheObserver(metrics),
		rules.WithWorkers(cfg.RuleWorkers),
	)

	// --- Backend ---
	var (
		transactions port.TransactionStore
		batches      port.ImportBatchStore
		ruleStore    port.RuleStore
		accounts     port.AccountStore
		checker      *reconcile.BalanceChecker
		backend      handler.Pinger
	)

	if cfg.UseSupabase() {
		logger.Info("using Supabase as ledger backend",
			zap.String("supabase_url", cfg.SupabaseURL),
		)
		client := supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase", logger),
			resilience.Config{
				MaxRetries:     cfg.MaxRetries,
				InitialBackoff: cfg.InitialBackoff,
				MaxConcurrency: cfg.MaxConcurrency,
			},
			logger,
		)
		transactions = client
		batches = client
		ruleStore = client
		accounts = client
		backend = client
		checker = reconcile.NewBalanceChecker(client, logger, metrics, cfg.MaxConcurrency)
	} else {
		logger.Warn("Supabase not configured: imports run in preview-only mode and discrepancy checks are unavailable")
	}

	// --- Services ---
	importSvc := service.NewImportService(transactions, batches, ruleStore, ruleCache, matcher, metrics, logger)
	reconcileSvc := service.NewReconciliationService(accounts, checker, cfg.Reconciliation, metrics, logger)

	var authSvc *service.AuthService
	if cfg.JWTSecret != "" {
		authSvc = service.NewAuthService(cfg.JWTSecret, logger)
		logger.Info("auth enabled")
	} else {
		logger.Warn("auth disabled: SUPABASE_JWT_SECRET is not set")
	}

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Import:         importSvc,
		Reconciliation: reconcileSvc,
		Auth:           authSvc,
		Accounts:       accounts,
		Backend:        backend,
		Metrics:        metrics,
		Logger:         logger,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
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
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
