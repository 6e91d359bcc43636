package service

import (
	"context"
	"time"

	"github.com/ledgerline/budget-engine/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Lifecycle: draft -> pending_approval -> {approved, rejected};
// approved -> active; active|approved|revised -> revised (via revisions);
// rejected -> pending_approval (resubmission).

// SubmitForApproval moves a draft or rejected budget to pending_approval.
// A budget with no line items cannot be submitted.
func (s *BudgetService) SubmitForApproval(ctx context.Context, budgetID, actorID string) (*domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.SubmitForApproval")
	defer span.End()
	span.SetAttributes(attribute.String("budget.id", budgetID))

	b, err := s.store.GetBudget(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.StatusDraft && b.Status != domain.StatusRejected {
		return nil, &domain.ErrInvalidTransition{Operation: "submit for approval", From: string(b.Status)}
	}

	lines, err := s.store.ListLines(ctx, budgetID)
	if err != nil {
		s.metrics.IncrStoreError("store")
		return nil, err
	}
	if len(lines) == 0 {
		return nil, &domain.ErrEmptyBudget{BudgetID: budgetID}
	}

	now := time.Now().UTC()
	b.Status = domain.StatusPendingApproval
	b.SubmittedBy = actorID
	b.SubmittedAt = &now
	b.UpdatedAt = now
	b.UpdatedBy = actorID

	if err := s.store.UpdateBudget(ctx, b); err != nil {
		s.metrics.IncrStoreError("store")
		return nil, err
	}

	s.metrics.IncrTransition(domain.StatusPendingApproval)
	s.logger.Info("budget submitted for approval",
		zap.String("budget_id", budgetID),
		zap.String("actor_id", actorID),
	)
	return b, nil
}

// ProcessApproval approves or rejects a pending-approval budget, recording
// the approver and notes.
func (s *BudgetService) ProcessApproval(ctx context.Context, budgetID string, req *domain.ApprovalRequest, actorID string) (*domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.ProcessApproval")
	defer span.End()
	span.SetAttributes(
		attribute.String("budget.id", budgetID),
		attribute.String("approval.action", string(req.Action)),
	)

	b, err := s.store.GetBudget(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.StatusPendingApproval {
		return nil, &domain.ErrInvalidTransition{Operation: "process approval", From: string(b.Status)}
	}

	now := time.Now().UTC()
	switch req.Action {
	case domain.ActionApprove:
		b.Status = domain.StatusApproved
		b.ApprovedBy = actorID
		b.ApprovedAt = &now
		b.ApprovalNotes = req.Notes
	case domain.ActionReject:
		b.Status = domain.StatusRejected
		b.ApprovalNotes = req.Notes
	default:
		return nil, &domain.ErrValidation{Field: "action", Message: "must be approve or reject"}
	}
	b.UpdatedAt = now
	b.UpdatedBy = actorID

	if err := s.store.UpdateBudget(ctx, b); err != nil {
		s.metrics.IncrStoreError("store")
		return nil, err
	}

	s.metrics.IncrTransition(b.Status)
	s.logger.Info("budget approval processed",
		zap.String("budget_id", budgetID),
		zap.String("action", string(req.Action)),
		zap.String("actor_id", actorID),
	)
	return b, nil
}

// Activate moves an approved budget to active.
func (s *BudgetService) Activate(ctx context.Context, budgetID, actorID string) (*domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.Activate")
	defer span.End()
	span.SetAttributes(attribute.String("budget.id", budgetID))

	b, err := s.store.GetBudget(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.StatusApproved {
		return nil, &domain.ErrInvalidTransition{Operation: "activate", From: string(b.Status)}
	}

	b.Status = domain.StatusActive
	b.UpdatedAt = time.Now().UTC()
	b.UpdatedBy = actorID

	if err := s.store.UpdateBudget(ctx, b); err != nil {
		s.metrics.IncrStoreError("store")
		return nil, err
	}

	s.metrics.IncrTransition(domain.StatusActive)
	s.logger.Info("budget activated",
		zap.String("budget_id", budgetID),
		zap.String("actor_id", actorID),
	)
	return b, nil
}
