// Package port defines the engine's boundary interfaces: the budget document
// store, the append-only revision store, and the read-only account catalog.
// The engine treats all three as external collaborators.
package port

import (
	"context"
	"time"

	"github.com/ledgerline/budget-engine/internal/domain"
)

// BudgetStore persists budgets and their line items.
type BudgetStore interface {
	CreateBudget(ctx context.Context, b *domain.Budget) error
	GetBudget(ctx context.Context, id string) (*domain.Budget, error)
	UpdateBudget(ctx context.Context, b *domain.Budget) error
	// UpdateBudgetChecked writes b only if the stored record still carries
	// expectedVersion; it returns *domain.ErrConflict otherwise. Used by the
	// aggregator's read-recompute-write cycle.
	UpdateBudgetChecked(ctx context.Context, b *domain.Budget, expectedVersion int) error
	QueryBudgets(ctx context.Context, filter domain.BudgetFilter) ([]domain.Budget, error)

	CreateLine(ctx context.Context, line *domain.BudgetLineItem) error
	GetLine(ctx context.Context, lineID string) (*domain.BudgetLineItem, error)
	UpdateLine(ctx context.Context, line *domain.BudgetLineItem) error
	DeleteLine(ctx context.Context, lineID string) error
	ListLines(ctx context.Context, budgetID string) ([]domain.BudgetLineItem, error)

	// BatchCommit applies a revision as one all-or-nothing commit: every
	// changed line, the revision's terminal status, and the budget's version
	// bump land together or not at all.
	BatchCommit(ctx context.Context, batch *domain.RevisionBatch) error
}

// RevisionStore is the append-only ledger of budget revisions. A revision is
// resolved exactly once: to approved (inside BatchCommit) or to rejected
// (through ResolveRevision); it is never mutated afterward.
type RevisionStore interface {
	CreateRevision(ctx context.Context, rev *domain.BudgetRevision) error
	GetRevision(ctx context.Context, id string) (*domain.BudgetRevision, error)
	ListRevisions(ctx context.Context, budgetID string) ([]domain.BudgetRevision, error)
	ResolveRevision(ctx context.Context, id string, status domain.RevisionStatus, resolvedBy string, resolvedAt time.Time) error
}

// AccountCatalog resolves account ids to their catalog records. Read-only.
type AccountCatalog interface {
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
}
