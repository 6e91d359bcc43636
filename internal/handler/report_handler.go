package handler

import (
	"net/http"

	"github.com/ledgerline/budget-engine/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Variance & forecast reports — read-only, on-demand.
// ============================================================

func varianceHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budgets/{budgetId}/variance")
		defer span.End()

		asOf, err := parseAsOf(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		report, err := svc.Variance(ctx, chi.URLParam(r, "budgetId"), asOf)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func forecastHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budgets/{budgetId}/forecast")
		defer span.End()

		asOf, err := parseAsOf(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		forecast, err := svc.Forecast(ctx, chi.URLParam(r, "budgetId"), asOf)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, forecast)
	}
}
