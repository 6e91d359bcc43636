package handler

import (
	"net/http"

	"github.com/ledgerline/budget-engine/internal/infra/observability"
	"github.com/ledgerline/budget-engine/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc *service.BudgetService, metrics *observability.Metrics, jwtSecret string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(ActorMiddleware(jwtSecret, logger))

		// Budgets
		r.Post("/budgets", createBudgetHandler(svc, logger))
		r.Get("/budgets", queryBudgetsHandler(svc, logger))
		r.Get("/budgets/{budgetId}", getBudgetHandler(svc, logger))
		r.Patch("/budgets/{budgetId}", updateBudgetHandler(svc, logger))
		r.Post("/budgets/{budgetId}/copy", copyBudgetHandler(svc, logger))
		r.Post("/budgets/{budgetId}/lock", setLockHandler(svc, true, logger))
		r.Post("/budgets/{budgetId}/unlock", setLockHandler(svc, false, logger))

		// Line items
		r.Post("/budgets/{budgetId}/lines", createLineHandler(svc, logger))
		r.Get("/budgets/{budgetId}/lines", listLinesHandler(svc, logger))
		r.Get("/lines/{lineId}", getLineHandler(svc, logger))
		r.Patch("/lines/{lineId}", updateLineHandler(svc, logger))
		r.Delete("/lines/{lineId}", deleteLineHandler(svc, logger))

		// Lifecycle
		r.Post("/budgets/{budgetId}/submit", submitHandler(svc, logger))
		r.Post("/budgets/{budgetId}/approval", approvalHandler(svc, logger))
		r.Post("/budgets/{budgetId}/activate", activateHandler(svc, logger))

		// Reports (read-only, on-demand)
		r.Get("/budgets/{budgetId}/variance", varianceHandler(svc, logger))
		r.Get("/budgets/{budgetId}/forecast", forecastHandler(svc, logger))

		// Revisions
		r.Post("/budgets/{budgetId}/revisions", proposeRevisionHandler(svc, logger))
		r.Get("/budgets/{budgetId}/revisions", listRevisionsHandler(svc, logger))
		r.Get("/revisions/{revisionId}", getRevisionHandler(svc, logger))
		r.Post("/revisions/{revisionId}/apply", applyRevisionHandler(svc, logger))
		r.Post("/revisions/{revisionId}/reject", rejectRevisionHandler(svc, logger))

		// Engine counters
		r.Get("/metrics/engine", engineMetricsHandler(metrics, logger))
	})

	return r
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func engineMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetEngineSnapshot())
	}
}
