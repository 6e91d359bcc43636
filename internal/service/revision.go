package service

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerline/budget-engine/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Revisions
// ============================================================

// ProposeRevision records a pending revision capturing the delta between the
// current and proposed line amounts. Only active, approved or already-revised
// budgets accept proposals. No line is mutated here; proposal is
// non-destructive.
func (s *BudgetService) ProposeRevision(ctx context.Context, budgetID string, req *domain.ProposeRevisionRequest, actorID string) (*domain.BudgetRevision, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.ProposeRevision")
	defer span.End()
	span.SetAttributes(attribute.String("budget.id", budgetID))

	b, err := s.store.GetBudget(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.StatusActive && b.Status != domain.StatusApproved && b.Status != domain.StatusRevised {
		return nil, &domain.ErrInvalidTransition{Operation: "propose revision", From: string(b.Status)}
	}
	if len(req.Changes) == 0 {
		return nil, &domain.ErrValidation{Field: "changes", Message: "at least one line change is required"}
	}

	lines, err := s.store.ListLines(ctx, budgetID)
	if err != nil {
		s.metrics.IncrStoreError("store")
		return nil, err
	}
	byID := make(map[string]*domain.BudgetLineItem, len(lines))
	for i := range lines {
		byID[lines[i].ID] = &lines[i]
	}

	changes := make([]domain.BudgetLineChange, 0, len(req.Changes))
	var totalDelta int64
	for _, c := range req.Changes {
		line, ok := byID[c.LineID]
		if !ok {
			return nil, &domain.ErrLineNotFound{BudgetID: budgetID, LineID: c.LineID}
		}
		changes = append(changes, domain.BudgetLineChange{
			LineID:         c.LineID,
			AccountCode:    line.AccountCode,
			AccountName:    line.AccountName,
			PreviousAmount: line.AnnualBudget,
			NewAmount:      c.NewAmount,
			ChangeAmount:   c.NewAmount - line.AnnualBudget,
			Reason:         c.Reason,
		})
		totalDelta += c.NewAmount - line.AnnualBudget
	}

	rev := &domain.BudgetRevision{
		ID:              uuid.New().String(),
		BudgetID:        budgetID,
		RevisionNumber:  b.Version + 1,
		PreviousVersion: b.Version,
		NewVersion:      b.Version + 1,
		Reason:          req.Reason,
		PreviousTotal:   b.TotalBudget,
		NewTotal:        b.TotalBudget + totalDelta,
		ChangeAmount:    totalDelta,
		Changes:         changes,
		Status:          domain.RevisionPending,
		CreatedAt:       time.Now().UTC(),
		CreatedBy:       actorID,
	}

	if err := s.revisions.CreateRevision(ctx, rev); err != nil {
		s.metrics.IncrStoreError("store")
		return nil, err
	}

	s.metrics.IncrRevision("proposed")
	s.logger.Info("revision proposed",
		zap.String("budget_id", budgetID),
		zap.String("revision_id", rev.ID),
		zap.Int64("change_amount", totalDelta),
		zap.Int("line_changes", len(changes)),
	)
	return rev, nil
}

// ApplyRevision applies a pending revision: every changed line gets its new
// annual amount and a regenerated period table, the revision is approved,
// and the budget is bumped to the revision's version with status revised,
// all in one all-or-nothing store commit. The roll-up is recalculated
// afterward.
func (s *BudgetService) ApplyRevision(ctx context.Context, revisionID, actorID string) (*domain.BudgetRevision, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.ApplyRevision")
	defer span.End()
	span.SetAttributes(attribute.String("revision.id", revisionID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("apply_revision", time.Since(start)) }()

	rev, err := s.revisions.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	if rev.Status != domain.RevisionPending {
		return nil, &domain.ErrInvalidTransition{Operation: "apply revision", From: string(rev.Status)}
	}

	b, err := s.store.GetBudget(ctx, rev.BudgetID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	changedLines := make([]*domain.BudgetLineItem, 0, len(rev.Changes))
	for _, c := range rev.Changes {
		line, err := s.store.GetLine(ctx, c.LineID)
		if err != nil {
			var notFound *domain.ErrNotFound
			if errors.As(err, &notFound) {
				return nil, &domain.ErrLineNotFound{BudgetID: rev.BudgetID, LineID: c.LineID}
			}
			return nil, err
		}

		// Reallocate under the line's existing method. A custom table keeps
		// its shape only if the sum still matches; a changed amount falls
		// back to an equal split.
		custom := customAmountsOf(line)
		if custom != nil && c.NewAmount != line.AnnualBudget {
			custom = nil
		}
		periods, err := AllocatePeriods(c.NewAmount, line.AllocationMethod, custom, b.FiscalYear)
		if err != nil {
			return nil, err
		}

		line.AnnualBudget = c.NewAmount
		line.AnnualAvailable = line.AnnualBudget - line.AnnualActual - line.AnnualCommitted
		line.AnnualVariance = line.AnnualBudget - line.AnnualActual
		line.VariancePercent = percentOf(line.AnnualVariance, line.AnnualBudget)
		line.PeriodAmounts = periods
		line.UpdatedAt = now
		line.UpdatedBy = actorID
		changedLines = append(changedLines, line)
	}

	updated := *b
	updated.Version = rev.NewVersion
	updated.Status = domain.StatusRevised
	updated.UpdatedAt = now
	updated.UpdatedBy = actorID

	batch := &domain.RevisionBatch{
		RevisionID: rev.ID,
		Budget:     &updated,
		Lines:      changedLines,
		ResolvedBy: actorID,
		ResolvedAt: now,
	}
	if err := s.store.BatchCommit(ctx, batch); err != nil {
		s.metrics.IncrStoreError("store")
		return nil, err
	}

	rev.Status = domain.RevisionApproved
	rev.ResolvedBy = actorID
	rev.ResolvedAt = &now

	s.metrics.IncrRevision("applied")
	s.metrics.IncrTransition(domain.StatusRevised)
	s.logger.Info("revision applied",
		zap.String("budget_id", rev.BudgetID),
		zap.String("revision_id", rev.ID),
		zap.Int("new_version", rev.NewVersion),
	)

	if _, err := s.Recalculate(ctx, rev.BudgetID); err != nil {
		return nil, err
	}
	return rev, nil
}

// RejectRevision resolves a pending revision as rejected. No line changes.
func (s *BudgetService) RejectRevision(ctx context.Context, revisionID, actorID string) (*domain.BudgetRevision, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.RejectRevision")
	defer span.End()
	span.SetAttributes(attribute.String("revision.id", revisionID))

	rev, err := s.revisions.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	if rev.Status != domain.RevisionPending {
		return nil, &domain.ErrInvalidTransition{Operation: "reject revision", From: string(rev.Status)}
	}

	now := time.Now().UTC()
	if err := s.revisions.ResolveRevision(ctx, revisionID, domain.RevisionRejected, actorID, now); err != nil {
		s.metrics.IncrStoreError("store")
		return nil, err
	}

	rev.Status = domain.RevisionRejected
	rev.ResolvedBy = actorID
	rev.ResolvedAt = &now

	s.metrics.IncrRevision("rejected")
	return rev, nil
}

// ListRevisions returns a budget's revision ledger.
func (s *BudgetService) ListRevisions(ctx context.Context, budgetID string) ([]domain.BudgetRevision, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.ListRevisions")
	defer span.End()

	return s.revisions.ListRevisions(ctx, budgetID)
}

// GetRevision returns one revision by id.
func (s *BudgetService) GetRevision(ctx context.Context, revisionID string) (*domain.BudgetRevision, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.GetRevision")
	defer span.End()

	return s.revisions.GetRevision(ctx, revisionID)
}
