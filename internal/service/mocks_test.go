package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ledgerline/budget-engine/internal/domain"
	"github.com/ledgerline/budget-engine/internal/infra/cache"
	"github.com/ledgerline/budget-engine/internal/infra/observability"
	"github.com/ledgerline/budget-engine/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

// memStore is an in-memory implementation of the budget store, revision store
// and account catalog. Values are copied on every read and write so tests see
// the same isolation a real round trip gives.
type memStore struct {
	mu        sync.Mutex
	budgets   map[string]domain.Budget
	lines     map[string]domain.BudgetLineItem
	revisions map[string]domain.BudgetRevision
	accounts  map[string]domain.Account

	accountCalls  int
	conflictsLeft int   // UpdateBudgetChecked reports a version race this many times
	batchErr      error // forces BatchCommit to fail without applying anything
}

func newMemStore() *memStore {
	return &memStore{
		budgets:   make(map[string]domain.Budget),
		lines:     make(map[string]domain.BudgetLineItem),
		revisions: make(map[string]domain.BudgetRevision),
		accounts:  make(map[string]domain.Account),
	}
}

func (m *memStore) CreateBudget(_ context.Context, b *domain.Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budgets[b.ID] = *b
	return nil
}

func (m *memStore) GetBudget(_ context.Context, id string) (*domain.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "budget", ID: id}
	}
	out := b
	return &out, nil
}

func (m *memStore) UpdateBudget(_ context.Context, b *domain.Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.budgets[b.ID]; !ok {
		return &domain.ErrNotFound{Resource: "budget", ID: b.ID}
	}
	m.budgets[b.ID] = *b
	return nil
}

func (m *memStore) UpdateBudgetChecked(_ context.Context, b *domain.Budget, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflictsLeft > 0 {
		m.conflictsLeft--
		return &domain.ErrConflict{Resource: "budget", ID: b.ID, Version: expectedVersion}
	}
	stored, ok := m.budgets[b.ID]
	if !ok {
		return &domain.ErrNotFound{Resource: "budget", ID: b.ID}
	}
	if stored.Version != expectedVersion {
		return &domain.ErrConflict{Resource: "budget", ID: b.ID, Version: expectedVersion}
	}
	m.budgets[b.ID] = *b
	return nil
}

func (m *memStore) QueryBudgets(_ context.Context, filter domain.BudgetFilter) ([]domain.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Budget
	for _, b := range m.budgets {
		if filter.CompanyID != "" && b.CompanyID != filter.CompanyID {
			continue
		}
		if filter.FiscalYear != 0 && b.FiscalYear != filter.FiscalYear {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if !filter.MatchesSearch(&b) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *memStore) CreateLine(_ context.Context, line *domain.BudgetLineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[line.ID] = *line
	return nil
}

func (m *memStore) GetLine(_ context.Context, lineID string) (*domain.BudgetLineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	line, ok := m.lines[lineID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "budget line", ID: lineID}
	}
	out := line
	return &out, nil
}

func (m *memStore) UpdateLine(_ context.Context, line *domain.BudgetLineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lines[line.ID]; !ok {
		return &domain.ErrNotFound{Resource: "budget line", ID: line.ID}
	}
	m.lines[line.ID] = *line
	return nil
}

func (m *memStore) DeleteLine(_ context.Context, lineID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lines, lineID)
	return nil
}

func (m *memStore) ListLines(_ context.Context, budgetID string) ([]domain.BudgetLineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BudgetLineItem
	for _, line := range m.lines {
		if line.BudgetID == budgetID {
			out = append(out, line)
		}
	}
	return out, nil
}

func (m *memStore) BatchCommit(_ context.Context, batch *domain.RevisionBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.batchErr != nil {
		return m.batchErr
	}
	if _, ok := m.revisions[batch.RevisionID]; !ok {
		return &domain.ErrNotFound{Resource: "revision", ID: batch.RevisionID}
	}
	rev := m.revisions[batch.RevisionID]
	rev.Status = domain.RevisionApproved
	rev.ResolvedBy = batch.ResolvedBy
	resolvedAt := batch.ResolvedAt
	rev.ResolvedAt = &resolvedAt
	m.revisions[batch.RevisionID] = rev

	for _, line := range batch.Lines {
		m.lines[line.ID] = *line
	}
	m.budgets[batch.Budget.ID] = *batch.Budget
	return nil
}

func (m *memStore) CreateRevision(_ context.Context, rev *domain.BudgetRevision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revisions[rev.ID] = *rev
	return nil
}

func (m *memStore) GetRevision(_ context.Context, id string) (*domain.BudgetRevision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rev, ok := m.revisions[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "revision", ID: id}
	}
	out := rev
	return &out, nil
}

func (m *memStore) ListRevisions(_ context.Context, budgetID string) ([]domain.BudgetRevision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BudgetRevision
	for _, rev := range m.revisions {
		if rev.BudgetID == budgetID {
			out = append(out, rev)
		}
	}
	return out, nil
}

func (m *memStore) ResolveRevision(_ context.Context, id string, status domain.RevisionStatus, resolvedBy string, resolvedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rev, ok := m.revisions[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "revision", ID: id}
	}
	if rev.Status != domain.RevisionPending {
		return &domain.ErrConflict{Resource: "revision", ID: id}
	}
	rev.Status = status
	rev.ResolvedBy = resolvedBy
	rev.ResolvedAt = &resolvedAt
	m.revisions[id] = rev
	return nil
}

func (m *memStore) GetAccount(_ context.Context, accountID string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountCalls++
	acc, ok := m.accounts[accountID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	out := acc
	return &out, nil
}

// --- Helpers ---

func newTestService(store *memStore) *service.BudgetService {
	return service.NewBudgetService(
		store,
		store,
		store,
		cache.New[*domain.Account](5*time.Minute),
		domain.DefaultVarianceConfig(),
		domain.DefaultForecastConfig(),
		observability.NewMetrics(),
		zap.NewNop(),
	)
}

func seedAccount(store *memStore, id, code, name, accType, subType string) {
	store.accounts[id] = domain.Account{
		ID: id, Code: code, Name: name, Type: accType, SubType: subType, IsActive: true,
	}
}

func seedBudget(store *memStore, id string, fiscalYear int, status domain.BudgetStatus) {
	store.budgets[id] = domain.Budget{
		ID:         id,
		CompanyID:  "co-1",
		Name:       "Operating Budget",
		Code:       "BUD-" + id,
		Type:       domain.TypeOperating,
		FiscalYear: fiscalYear,
		PeriodType: domain.PeriodMonthly,
		StartDate:  domain.FiscalYearStart(fiscalYear),
		EndDate:    domain.FiscalYearEnd(fiscalYear),
		Currency:   "USD",
		Status:     status,
		Version:    1,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
}

func seedLine(store *memStore, id, budgetID string, annual, actual int64, fiscalYear int) {
	periods, err := service.AllocatePeriods(annual, domain.AllocationEqual, nil, fiscalYear)
	if err != nil {
		panic(err)
	}
	store.lines[id] = domain.BudgetLineItem{
		ID:               id,
		BudgetID:         budgetID,
		AccountID:        "acc-" + id,
		AccountCode:      "5000-" + id,
		AccountName:      "Account " + id,
		AccountType:      "expense",
		AnnualBudget:     annual,
		AnnualActual:     actual,
		AnnualAvailable:  annual - actual,
		AnnualVariance:   annual - actual,
		PeriodAmounts:    periods,
		AllocationMethod: domain.AllocationEqual,
	}
}

var errStoreDown = errors.New("store unavailable")
