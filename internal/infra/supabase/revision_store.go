package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/ledgerline/budget-engine/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Revisions — append-only ledger plus the atomic batch commit.
// ============================================================

func (c *Client) CreateRevision(ctx context.Context, rev *domain.BudgetRevision) error {
	ctx, span := tracer.Start(ctx, "Supabase.CreateRevision")
	defer span.End()
	span.SetAttributes(attribute.String("revision.id", rev.ID))

	body, err := c.doPost(ctx, "budget_revisions", rev)
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/budget_revisions", Err: err}
	}

	var rows []domain.BudgetRevision
	if err := json.Unmarshal(body, &rows); err != nil {
		return fmt.Errorf("decode revision: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("no result from budget_revisions insert")
	}
	return nil
}

func (c *Client) GetRevision(ctx context.Context, id string) (*domain.BudgetRevision, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetRevision")
	defer span.End()
	span.SetAttributes(attribute.String("revision.id", id))

	path := fmt.Sprintf("budget_revisions?id=eq.%s&limit=1", url.QueryEscape(id))
	body, err := c.getWithRetry(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/budget_revisions", Err: err}
	}
	if body == nil || string(body) == "[]" {
		return nil, &domain.ErrNotFound{Resource: "budget_revision", ID: id}
	}

	var rows []domain.BudgetRevision
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode revision: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "budget_revision", ID: id}
	}
	return &rows[0], nil
}

func (c *Client) ListRevisions(ctx context.Context, budgetID string) ([]domain.BudgetRevision, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListRevisions")
	defer span.End()
	span.SetAttributes(attribute.String("budget.id", budgetID))

	path := fmt.Sprintf("budget_revisions?budget_id=eq.%s&order=revision_number.desc", url.QueryEscape(budgetID))
	body, err := c.getWithRetry(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/budget_revisions", Err: err}
	}
	if body == nil {
		return []domain.BudgetRevision{}, nil
	}

	var rows []domain.BudgetRevision
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode revisions: %w", err)
	}
	return rows, nil
}

// ResolveRevision marks a pending revision rejected (the approved path goes
// through BatchCommit). The status filter keeps a resolved revision immutable.
func (c *Client) ResolveRevision(ctx context.Context, id string, status domain.RevisionStatus, resolvedBy string, resolvedAt time.Time) error {
	ctx, span := tracer.Start(ctx, "Supabase.ResolveRevision")
	defer span.End()
	span.SetAttributes(attribute.String("revision.id", id))

	path := fmt.Sprintf("budget_revisions?id=eq.%s&status=eq.%s", url.QueryEscape(id), domain.RevisionPending)
	patch := map[string]any{
		"status":      status,
		"resolved_by": resolvedBy,
		"resolved_at": resolvedAt,
	}
	body, err := c.doPatch(ctx, path, patch)
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/budget_revisions", Err: err}
	}
	if string(body) == "[]" {
		return &domain.ErrConflict{Resource: "budget_revision", ID: id}
	}
	return nil
}

// BatchCommit applies an approved revision in one transaction: the Postgres
// function updates every changed line, marks the revision approved, and bumps
// the budget's version/status, or rolls the whole thing back.
func (c *Client) BatchCommit(ctx context.Context, batch *domain.RevisionBatch) error {
	ctx, span := tracer.Start(ctx, "Supabase.BatchCommit")
	defer span.End()
	span.SetAttributes(
		attribute.String("revision.id", batch.RevisionID),
		attribute.Int("lines", len(batch.Lines)),
	)

	if _, err := c.doRPC(ctx, "apply_budget_revision", batch); err != nil {
		return &domain.ErrExternalService{Service: "supabase/apply_budget_revision", Err: err}
	}
	return nil
}
