package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ledgerline/budget-engine/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Budgets — CRUD via PostgREST (implements part of port.BudgetStore)
// ============================================================

func (c *Client) CreateBudget(ctx context.Context, b *domain.Budget) error {
	ctx, span := tracer.Start(ctx, "Supabase.CreateBudget")
	defer span.End()
	span.SetAttributes(attribute.String("budget.id", b.ID))

	body, err := c.doPost(ctx, "budgets", b)
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/budgets", Err: err}
	}

	var rows []domain.Budget
	if err := json.Unmarshal(body, &rows); err != nil {
		return fmt.Errorf("decode budget: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("no result from budgets insert")
	}
	return nil
}

func (c *Client) GetBudget(ctx context.Context, id string) (*domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetBudget")
	defer span.End()
	span.SetAttributes(attribute.String("budget.id", id))

	path := fmt.Sprintf("budgets?id=eq.%s&limit=1", url.QueryEscape(id))
	body, err := c.getWithRetry(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/budgets", Err: err}
	}
	if body == nil || string(body) == "[]" {
		return nil, &domain.ErrNotFound{Resource: "budget", ID: id}
	}

	var rows []domain.Budget
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode budget: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "budget", ID: id}
	}
	return &rows[0], nil
}

func (c *Client) UpdateBudget(ctx context.Context, b *domain.Budget) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateBudget")
	defer span.End()
	span.SetAttributes(attribute.String("budget.id", b.ID))

	path := fmt.Sprintf("budgets?id=eq.%s", url.QueryEscape(b.ID))
	body, err := c.doPatch(ctx, path, b)
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/budgets", Err: err}
	}
	if string(body) == "[]" {
		return &domain.ErrNotFound{Resource: "budget", ID: b.ID}
	}
	return nil
}

// UpdateBudgetChecked writes b only while the stored row still carries
// expectedVersion. PostgREST returns the updated rows; an empty result means
// the version filter matched nothing, i.e. a concurrent writer won.
func (c *Client) UpdateBudgetChecked(ctx context.Context, b *domain.Budget, expectedVersion int) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateBudgetChecked")
	defer span.End()
	span.SetAttributes(
		attribute.String("budget.id", b.ID),
		attribute.Int("budget.version", expectedVersion),
	)

	path := fmt.Sprintf("budgets?id=eq.%s&version=eq.%d", url.QueryEscape(b.ID), expectedVersion)
	body, err := c.doPatch(ctx, path, b)
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/budgets", Err: err}
	}
	if string(body) == "[]" {
		return &domain.ErrConflict{Resource: "budget", ID: b.ID, Version: expectedVersion}
	}
	return nil
}

// QueryBudgets pushes equality filters to PostgREST and applies the
// substring search client-side.
func (c *Client) QueryBudgets(ctx context.Context, filter domain.BudgetFilter) ([]domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "Supabase.QueryBudgets")
	defer span.End()

	params := make([]string, 0, 6)
	if filter.CompanyID != "" {
		params = append(params, "company_id=eq."+url.QueryEscape(filter.CompanyID))
	}
	if filter.FiscalYear != 0 {
		params = append(params, fmt.Sprintf("fiscal_year=eq.%d", filter.FiscalYear))
	}
	if filter.Type != "" {
		params = append(params, "type=eq."+url.QueryEscape(string(filter.Type)))
	}
	if filter.Status != "" {
		params = append(params, "status=eq."+url.QueryEscape(string(filter.Status)))
	}
	if filter.DepartmentID != "" {
		params = append(params, "department_id=eq."+url.QueryEscape(filter.DepartmentID))
	}
	if filter.ProjectID != "" {
		params = append(params, "project_id=eq."+url.QueryEscape(filter.ProjectID))
	}
	params = append(params, "order=fiscal_year.desc,code.asc")

	path := "budgets?" + strings.Join(params, "&")
	body, err := c.getWithRetry(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/budgets", Err: err}
	}
	if body == nil {
		return []domain.Budget{}, nil
	}

	var rows []domain.Budget
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode budgets: %w", err)
	}

	if filter.Search == "" {
		return rows, nil
	}
	matched := rows[:0]
	for i := range rows {
		if filter.MatchesSearch(&rows[i]) {
			matched = append(matched, rows[i])
		}
	}
	return matched, nil
}
