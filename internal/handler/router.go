package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// healthCheckTimeout bounds the ledger probe in /healthz.
const healthCheckTimeout = 2 * time.Second

// NewRouter creates the HTTP router with all routes and middleware.
// Every write goes through the ledger's mutation coordinator.
func NewRouter(ledger *service.Ledger, currency domain.Currency, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	p := presenter{currency: currency}

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(ledger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/ledger", ledgerMetricsHandler(metrics))

		if ledger == nil {
			r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusServiceUnavailable, "ledger not configured")
			}))
			return
		}

		// Categories
		r.Get("/categories", listCategoriesHandler(ledger, logger))
		r.Post("/categories", createCategoryHandler(ledger, p, logger))
		r.Put("/categories/{id}", updateCategoryHandler(ledger, p, logger))
		r.Delete("/categories/{id}", deleteCategoryHandler(ledger, p, logger))

		// Transactions
		r.Get("/transactions", listTransactionsHandler(ledger, p, logger))
		r.Post("/transactions", createTransactionHandler(ledger, p, logger))
		r.Put("/transactions/{id}", updateTransactionHandler(ledger, p, logger))
		r.Delete("/transactions/{id}", deleteTransactionHandler(ledger, p, logger))

		// Aggregates and the current view
		r.Get("/summary", summaryHandler(ledger, p, logger))
		r.Get("/view", getViewHandler(ledger, p, logger))
		r.Put("/view/filter", setViewFilterHandler(ledger, p, logger))

		// Coordinator state
		r.Get("/mutations/{kind}/{id}", mutationStatusHandler(ledger))
	})

	return r
}

// ============================================================
// Operational
// ============================================================

type serviceHealth struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type healthResponse struct {
	Status    string          `json:"status"`
	Services  []serviceHealth `json:"services"`
	CheckedAt string          `json:"checked_at"`
}

func healthzHandler(ledger *service.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := []serviceHealth{{Name: "bfa-api", Status: "healthy"}}

		if ledger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()

			start := time.Now()
			_, err := ledger.Categories.List(ctx)
			h := serviceHealth{Name: "ledger-api", Status: "healthy", LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				h.Status = "degraded"
				h.Error = err.Error()
			}
			services = append(services, h)
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overall = "degraded"
			}
		}
		writeJSON(w, http.StatusOK, healthResponse{
			Status:    overall,
			Services:  services,
			CheckedAt: time.Now().Format(time.RFC3339),
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func ledgerMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
