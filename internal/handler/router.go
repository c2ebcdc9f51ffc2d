package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/felipemotter/gestor-sub001/internal/domain"
	"github.com/felipemotter/gestor-sub001/internal/infra/observability"
	"github.com/felipemotter/gestor-sub001/internal/port"
	"github.com/felipemotter/gestor-sub001/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

const defaultMaxUploadBytes = 5 << 20

// Pinger reports whether a backend dependency answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the router serves. Auth and Backend may be
// nil: without Auth the API is unauthenticated, without Backend the health
// check reports only the API itself. Account routes are checked against
// the token's owner when both Auth and Accounts are set.
type Deps struct {
	Import         *service.ImportService
	Reconciliation *service.ReconciliationService
	Auth           *service.AuthService
	Accounts       port.AccountStore
	Backend        Pinger
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	MaxUploadBytes int64
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	if d.Metrics != nil {
		r.Use(observability.HTTPMetricsMiddleware(d.Metrics))
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.Backend, logger))
	r.Get("/readyz", readyzHandler())
	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if d.Auth != nil {
			r.Use(JWTAuthMiddleware(d.Auth, logger))
		}

		// =============================================
		// 1. Importação de extratos
		// =============================================
		r.Post("/imports/statement", uploadStatementHandler(d.Import, maxUpload, logger))
		r.Route("/accounts/{accountId}", func(r chi.Router) {
			if d.Auth != nil && d.Accounts != nil {
				r.Use(AccountOwnerMiddleware(d.Accounts, logger))
			}
			r.Post("/imports/confirm", confirmImportHandler(d.Import, logger))
		})

		// =============================================
		// 2. Conciliação
		// =============================================
		r.Post("/reconciliation/auto-match", autoMatchHandler(d.Reconciliation, logger))
		r.Post("/reconciliation/candidates", candidatesHandler(d.Reconciliation, logger))
		r.Get("/reconciliation/discrepancies", discrepanciesHandler(d.Reconciliation, logger))

		// =============================================
		// 3. Métricas
		// =============================================
		if d.Metrics != nil {
			r.Get("/metrics/engine", engineMetricsHandler(d.Metrics))
		}
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func healthzHandler(backend Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "gestor-api", Status: "healthy", LastChecked: now},
		}

		if backend != nil {
			start := time.Now()
			err := backend.Ping(r.Context())
			status := "healthy"
			if err != nil {
				logger.Warn("health check: backend unavailable", zap.Error(err))
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name:        "supabase",
				Status:      status,
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func engineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.EngineSnapshot())
	}
}
