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
// Account catalog (implements port.AccountCatalog) — read-only.
// ============================================================

func (c *Client) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	path := fmt.Sprintf("accounts?id=eq.%s&limit=1", url.QueryEscape(accountID))
	body, err := c.getWithRetry(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/accounts", Err: err}
	}
	if body == nil || string(body) == "[]" {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}

	var rows []domain.Account
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	return &rows[0], nil
}
