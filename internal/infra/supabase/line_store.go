package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/ledgerline/budget-engine/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Line items — CRUD via PostgREST. The 12-entry period table is stored as a
// jsonb column and travels inside the row.
// ============================================================

func (c *Client) CreateLine(ctx context.Context, line *domain.BudgetLineItem) error {
	ctx, span := tracer.Start(ctx, "Supabase.CreateLine")
	defer span.End()
	span.SetAttributes(attribute.String("line.id", line.ID))

	body, err := c.doPost(ctx, "budget_line_items", line)
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/budget_line_items", Err: err}
	}

	var rows []domain.BudgetLineItem
	if err := json.Unmarshal(body, &rows); err != nil {
		return fmt.Errorf("decode line item: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("no result from budget_line_items insert")
	}
	return nil
}

func (c *Client) GetLine(ctx context.Context, lineID string) (*domain.BudgetLineItem, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetLine")
	defer span.End()
	span.SetAttributes(attribute.String("line.id", lineID))

	path := fmt.Sprintf("budget_line_items?id=eq.%s&limit=1", url.QueryEscape(lineID))
	body, err := c.getWithRetry(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/budget_line_items", Err: err}
	}
	if body == nil || string(body) == "[]" {
		return nil, &domain.ErrNotFound{Resource: "budget_line_item", ID: lineID}
	}

	var rows []domain.BudgetLineItem
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode line item: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "budget_line_item", ID: lineID}
	}
	return &rows[0], nil
}

func (c *Client) UpdateLine(ctx context.Context, line *domain.BudgetLineItem) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateLine")
	defer span.End()
	span.SetAttributes(attribute.String("line.id", line.ID))

	path := fmt.Sprintf("budget_line_items?id=eq.%s", url.QueryEscape(line.ID))
	body, err := c.doPatch(ctx, path, line)
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/budget_line_items", Err: err}
	}
	if string(body) == "[]" {
		return &domain.ErrNotFound{Resource: "budget_line_item", ID: line.ID}
	}
	return nil
}

func (c *Client) DeleteLine(ctx context.Context, lineID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteLine")
	defer span.End()
	span.SetAttributes(attribute.String("line.id", lineID))

	path := fmt.Sprintf("budget_line_items?id=eq.%s", url.QueryEscape(lineID))
	if err := c.doDelete(ctx, path); err != nil {
		return &domain.ErrExternalService{Service: "supabase/budget_line_items", Err: err}
	}
	return nil
}

func (c *Client) ListLines(ctx context.Context, budgetID string) ([]domain.BudgetLineItem, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListLines")
	defer span.End()
	span.SetAttributes(attribute.String("budget.id", budgetID))

	path := fmt.Sprintf("budget_line_items?budget_id=eq.%s&order=account_code.asc", url.QueryEscape(budgetID))
	body, err := c.getWithRetry(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/budget_line_items", Err: err}
	}
	if body == nil {
		return []domain.BudgetLineItem{}, nil
	}

	var rows []domain.BudgetLineItem
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode line items: %w", err)
	}
	return rows, nil
}
