package handler

import (
	"encoding/json"
	"net/http"

	"github.com/ledgerline/budget-engine/internal/domain"
	"github.com/ledgerline/budget-engine/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Revisions
// ============================================================

func proposeRevisionHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/budgets/{budgetId}/revisions")
		defer span.End()

		var req domain.ProposeRevisionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		rev, err := svc.ProposeRevision(ctx, chi.URLParam(r, "budgetId"), &req, ActorFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, rev)
	}
}

func listRevisionsHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budgets/{budgetId}/revisions")
		defer span.End()

		revs, err := svc.ListRevisions(ctx, chi.URLParam(r, "budgetId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, revs)
	}
}

func getRevisionHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/revisions/{revisionId}")
		defer span.End()

		rev, err := svc.GetRevision(ctx, chi.URLParam(r, "revisionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rev)
	}
}

func applyRevisionHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/revisions/{revisionId}/apply")
		defer span.End()

		rev, err := svc.ApplyRevision(ctx, chi.URLParam(r, "revisionId"), ActorFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rev)
	}
}

func rejectRevisionHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/revisions/{revisionId}/reject")
		defer span.End()

		rev, err := svc.RejectRevision(ctx, chi.URLParam(r, "revisionId"), ActorFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rev)
	}
}
