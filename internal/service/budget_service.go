package service

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerline/budget-engine/internal/domain"
	"github.com/ledgerline/budget-engine/internal/infra/cache"
	"github.com/ledgerline/budget-engine/internal/infra/observability"
	"github.com/ledgerline/budget-engine/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/budget")

// recalcRetries bounds the conditional-write retry loop of the aggregator.
const recalcRetries = 3

// BudgetService orchestrates all budget operations against the document
// store and the account catalog.
type BudgetService struct {
	store     port.BudgetStore
	revisions port.RevisionStore
	catalog   port.AccountCatalog
	accounts  *cache.InMemory[*domain.Account]

	varianceCfg domain.VarianceConfig
	forecastCfg domain.ForecastConfig

	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewBudgetService creates a budget service.
func NewBudgetService(
	store port.BudgetStore,
	revisions port.RevisionStore,
	catalog port.AccountCatalog,
	accounts *cache.InMemory[*domain.Account],
	varianceCfg domain.VarianceConfig,
	forecastCfg domain.ForecastConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *BudgetService {
	return &BudgetService{
		store:       store,
		revisions:   revisions,
		catalog:     catalog,
		accounts:    accounts,
		varianceCfg: varianceCfg,
		forecastCfg: forecastCfg,
		metrics:     metrics,
		logger:      logger,
	}
}

// ============================================================
// Budgets
// ============================================================

// CreateBudget creates a draft budget for one fiscal year. Linking a parent
// budget marks the parent as having children.
func (s *BudgetService) CreateBudget(ctx context.Context, req *domain.CreateBudgetRequest, actorID string) (*domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.CreateBudget")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("create_budget", time.Since(start)) }()

	if req.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if req.Code == "" {
		return nil, &domain.ErrValidation{Field: "code", Message: "required"}
	}
	if req.FiscalYear < 1900 || req.FiscalYear > 3000 {
		return nil, &domain.ErrValidation{Field: "fiscal_year", Message: "out of range"}
	}
	if req.Type == "" {
		req.Type = domain.TypeOperating
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	now := time.Now().UTC()
	b := &domain.Budget{
		ID:             uuid.New().String(),
		CompanyID:      req.CompanyID,
		Name:           req.Name,
		Code:           req.Code,
		Description:    req.Description,
		Type:           req.Type,
		FiscalYear:     req.FiscalYear,
		PeriodType:     domain.PeriodMonthly,
		StartDate:      domain.FiscalYearStart(req.FiscalYear),
		EndDate:        domain.FiscalYearEnd(req.FiscalYear),
		DepartmentID:   req.DepartmentID,
		ProjectID:      req.ProjectID,
		Currency:       req.Currency,
		Status:         domain.StatusDraft,
		Version:        1,
		ParentBudgetID: req.ParentBudgetID,
		CreatedAt:      now,
		UpdatedAt:      now,
		CreatedBy:      actorID,
		UpdatedBy:      actorID,
	}

	if err := s.store.CreateBudget(ctx, b); err != nil {
		s.metrics.IncrStoreError("store")
		return nil, err
	}

	if req.ParentBudgetID != "" {
		if err := s.markParent(ctx, req.ParentBudgetID, actorID); err != nil {
			s.logger.Warn("failed to flag parent budget",
				zap.String("parent_budget_id", req.ParentBudgetID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("budget created",
		zap.String("budget_id", b.ID),
		zap.String("code", b.Code),
		zap.Int("fiscal_year", b.FiscalYear),
	)
	return b, nil
}

func (s *BudgetService) markParent(ctx context.Context, parentID, actorID string) error {
	parent, err := s.store.GetBudget(ctx, parentID)
	if err != nil {
		return err
	}
	if parent.HasChildren {
		return nil
	}
	parent.HasChildren = true
	parent.UpdatedAt = time.Now().UTC()
	parent.UpdatedBy = actorID
	return s.store.UpdateBudget(ctx, parent)
}

// GetBudget returns one budget by id.
func (s *BudgetService) GetBudget(ctx context.Context, budgetID string) (*domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.GetBudget")
	defer span.End()
	span.SetAttributes(attribute.String("budget.id", budgetID))

	return s.store.GetBudget(ctx, budgetID)
}

// QueryBudgets returns budgets matching the filter.
func (s *BudgetService) QueryBudgets(ctx context.Context, filter domain.BudgetFilter) ([]domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.QueryBudgets")
	defer span.End()

	return s.store.QueryBudgets(ctx, filter)
}

// UpdateBudget patches a budget's descriptive fields. Totals, status and
// version never flow through this path.
func (s *BudgetService) UpdateBudget(ctx context.Context, budgetID string, req *domain.UpdateBudgetRequest, actorID string) (*domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.UpdateBudget")
	defer span.End()

	b, err := s.store.GetBudget(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if b.IsLocked {
		return nil, &domain.ErrLockedBudget{BudgetID: budgetID}
	}

	if req.Name != nil {
		b.Name = *req.Name
	}
	if req.Description != nil {
		b.Description = *req.Description
	}
	if req.DepartmentID != nil {
		b.DepartmentID = *req.DepartmentID
	}
	if req.ProjectID != nil {
		b.ProjectID = *req.ProjectID
	}
	b.UpdatedAt = time.Now().UTC()
	b.UpdatedBy = actorID

	if err := s.store.UpdateBudget(ctx, b); err != nil {
		s.metrics.IncrStoreError("store")
		return nil, err
	}
	return b, nil
}

// SetLock locks or unlocks a budget. The lock is orthogonal to the status
// machine: it blocks line and total mutation in any status.
func (s *BudgetService) SetLock(ctx context.Context, budgetID string, locked bool, actorID string) (*domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.SetLock")
	defer span.End()

	b, err := s.store.GetBudget(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	b.IsLocked = locked
	b.UpdatedAt = time.Now().UTC()
	b.UpdatedBy = actorID

	if err := s.store.UpdateBudget(ctx, b); err != nil {
		s.metrics.IncrStoreError("store")
		return nil, err
	}
	return b, nil
}

// CopyBudget clones a budget and its lines into a new fiscal year as a draft.
// Period tables are regenerated for the target year; actuals are not carried.
func (s *BudgetService) CopyBudget(ctx context.Context, budgetID string, req *domain.CopyBudgetRequest, actorID string) (*domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.CopyBudget")
	defer span.End()

	src, err := s.store.GetBudget(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if req.FiscalYear < 1900 || req.FiscalYear > 3000 {
		return nil, &domain.ErrValidation{Field: "fiscal_year", Message: "out of range"}
	}
	if req.Code == "" {
		return nil, &domain.ErrValidation{Field: "code", Message: "required"}
	}
	name := req.Name
	if name == "" {
		name = src.Name
	}

	lines, err := s.store.ListLines(ctx, budgetID)
	if err != nil {
		s.metrics.IncrStoreError("store")
		return nil, err
	}

	now := time.Now().UTC()
	copyBudget := &domain.Budget{
		ID:           uuid.New().String(),
		CompanyID:    src.CompanyID,
		Name:         name,
		Code:         req.Code,
		Description:  src.Description,
		Type:         src.Type,
		FiscalYear:   req.FiscalYear,
		PeriodType:   domain.PeriodMonthly,
		StartDate:    domain.FiscalYearStart(req.FiscalYear),
		EndDate:      domain.FiscalYearEnd(req.FiscalYear),
		DepartmentID: src.DepartmentID,
		ProjectID:    src.ProjectID,
		Currency:     src.Currency,
		Status:       domain.StatusDraft,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
		CreatedBy:    actorID,
		UpdatedBy:    actorID,
	}
	if err := s.store.CreateBudget(ctx, copyBudget); err != nil {
		s.metrics.IncrStoreError("store")
		return nil, err
	}

	for i := range lines {
		src := &lines[i]
		custom := customAmountsOf(src)
		periods, err := AllocatePeriods(src.AnnualBudget, src.AllocationMethod, custom, req.FiscalYear)
		if err != nil {
			return nil, err
		}
		line := &domain.BudgetLineItem{
			ID:               uuid.New().String(),
			BudgetID:         copyBudget.ID,
			AccountID:        src.AccountID,
			AccountCode:      src.AccountCode,
			AccountName:      src.AccountName,
			AccountType:      src.AccountType,
			AccountSubType:   src.AccountSubType,
			Description:      src.Description,
			AnnualBudget:     src.AnnualBudget,
			AnnualAvailable:  src.AnnualBudget,
			AnnualVariance:   src.AnnualBudget,
			VariancePercent:  percentOf(src.AnnualBudget, src.AnnualBudget),
			PeriodAmounts:    periods,
			AllocationMethod: src.AllocationMethod,
			DepartmentID:     src.DepartmentID,
			ProjectID:        src.ProjectID,
			CostCenterID:     src.CostCenterID,
			CreatedAt:        now,
			UpdatedAt:        now,
			CreatedBy:        actorID,
			UpdatedBy:        actorID,
		}
		if err := s.store.CreateLine(ctx, line); err != nil {
			s.metrics.IncrStoreError("store")
			return nil, err
		}
	}

	return s.Recalculate(ctx, copyBudget.ID)
}

// customAmountsOf extracts a line's current per-period budget amounts so a
// custom allocation survives a reallocation for the same annual amount.
func customAmountsOf(line *domain.BudgetLineItem) []int64 {
	if line.AllocationMethod != domain.AllocationCustom || len(line.PeriodAmounts) != 12 {
		return nil
	}
	amounts := make([]int64, 12)
	for i, p := range line.PeriodAmounts {
		amounts[i] = p.BudgetAmount
	}
	return amounts
}

// ============================================================
// Line items
// ============================================================

// CreateLine adds one account's annual allocation to a budget. The account's
// code/name/type are snapshotted from the catalog at this moment and never
// re-synced afterward.
func (s *BudgetService) CreateLine(ctx context.Context, budgetID string, req *domain.CreateLineRequest, actorID string) (*domain.BudgetLineItem, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.CreateLine")
	defer span.End()
	span.SetAttributes(attribute.String("budget.id", budgetID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("create_line", time.Since(start)) }()

	b, err := s.store.GetBudget(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if b.IsLocked {
		return nil, &domain.ErrLockedBudget{BudgetID: budgetID}
	}
	if req.AccountID == "" {
		return nil, &domain.ErrValidation{Field: "account_id", Message: "required"}
	}
	method := req.AllocationMethod
	if method == "" {
		method = domain.AllocationEqual
	}

	account, err := s.lookupAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	periods, err := AllocatePeriods(req.AnnualBudget, method, req.CustomAmounts, b.FiscalYear)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	line := &domain.BudgetLineItem{
		ID:               uuid.New().String(),
		BudgetID:         budgetID,
		AccountID:        account.ID,
		AccountCode:      account.Code,
		AccountName:      account.Name,
		AccountType:      account.Type,
		AccountSubType:   account.SubType,
		Description:      req.Description,
		AnnualBudget:     req.AnnualBudget,
		AnnualAvailable:  req.AnnualBudget,
		AnnualVariance:   req.AnnualBudget,
		VariancePercent:  percentOf(req.AnnualBudget, req.AnnualBudget),
		PeriodAmounts:    periods,
		AllocationMethod: method,
		DepartmentID:     req.DepartmentID,
		ProjectID:        req.ProjectID,
		CostCenterID:     req.CostCenterID,
		CreatedAt:        now,
		UpdatedAt:        now,
		CreatedBy:        actorID,
		UpdatedBy:        actorID,
	}

	if err := s.store.CreateLine(ctx, line); err != nil {
		s.metrics.IncrStoreError("store")
		return nil, err
	}

	if _, err := s.Recalculate(ctx, budgetID); err != nil {
		return nil, err
	}
	return line, nil
}

// UpdateLine patches a line. Changing the annual amount or allocation method
// replaces the whole period table (actual amounts in the table start over;
// the line's annual actuals are untouched).
func (s *BudgetService) UpdateLine(ctx context.Context, lineID string, req *domain.UpdateLineRequest, actorID string) (*domain.BudgetLineItem, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.UpdateLine")
	defer span.End()
	span.SetAttributes(attribute.String("line.id", lineID))

	line, err := s.store.GetLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	b, err := s.store.GetBudget(ctx, line.BudgetID)
	if err != nil {
		return nil, err
	}
	if b.IsLocked || line.IsLocked {
		return nil, &domain.ErrLockedBudget{BudgetID: b.ID}
	}

	if req.Description != nil {
		line.Description = *req.Description
	}
	if req.DepartmentID != nil {
		line.DepartmentID = *req.DepartmentID
	}
	if req.ProjectID != nil {
		line.ProjectID = *req.ProjectID
	}
	if req.CostCenterID != nil {
		line.CostCenterID = *req.CostCenterID
	}

	reallocate := false
	if req.AnnualBudget != nil && *req.AnnualBudget != line.AnnualBudget {
		line.AnnualBudget = *req.AnnualBudget
		reallocate = true
	}
	if req.AllocationMethod != nil && *req.AllocationMethod != line.AllocationMethod {
		line.AllocationMethod = *req.AllocationMethod
		reallocate = true
	}
	if len(req.CustomAmounts) > 0 {
		reallocate = true
	}

	if reallocate {
		periods, err := AllocatePeriods(line.AnnualBudget, line.AllocationMethod, req.CustomAmounts, b.FiscalYear)
		if err != nil {
			return nil, err
		}
		line.PeriodAmounts = periods
	}

	line.AnnualAvailable = line.AnnualBudget - line.AnnualActual - line.AnnualCommitted
	line.AnnualVariance = line.AnnualBudget - line.AnnualActual
	line.VariancePercent = percentOf(line.AnnualVariance, line.AnnualBudget)
	line.UpdatedAt = time.Now().UTC()
	line.UpdatedBy = actorID

	if err := s.store.UpdateLine(ctx, line); err != nil {
		s.metrics.IncrStoreError("store")
		return nil, err
	}

	if _, err := s.Recalculate(ctx, b.ID); err != nil {
		return nil, err
	}
	return line, nil
}

// DeleteLine removes a line. Lines with recorded actual spend cannot be
// deleted; that history must survive.
func (s *BudgetService) DeleteLine(ctx context.Context, lineID string, actorID string) error {
	ctx, span := tracer.Start(ctx, "BudgetService.DeleteLine")
	defer span.End()
	span.SetAttributes(attribute.String("line.id", lineID))

	line, err := s.store.GetLine(ctx, lineID)
	if err != nil {
		return err
	}
	b, err := s.store.GetBudget(ctx, line.BudgetID)
	if err != nil {
		return err
	}
	if b.IsLocked || line.IsLocked {
		return &domain.ErrLockedBudget{BudgetID: b.ID}
	}
	if line.AnnualActual != 0 {
		return &domain.ErrHasActuals{LineID: lineID, Actual: line.AnnualActual}
	}

	if err := s.store.DeleteLine(ctx, lineID); err != nil {
		s.metrics.IncrStoreError("store")
		return err
	}

	s.logger.Info("line deleted",
		zap.String("budget_id", b.ID),
		zap.String("line_id", lineID),
		zap.String("actor_id", actorID),
	)

	_, err = s.Recalculate(ctx, b.ID)
	return err
}

// ListLines returns all line items of a budget.
func (s *BudgetService) ListLines(ctx context.Context, budgetID string) ([]domain.BudgetLineItem, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.ListLines")
	defer span.End()

	return s.store.ListLines(ctx, budgetID)
}

// GetLine returns one line item by id.
func (s *BudgetService) GetLine(ctx context.Context, lineID string) (*domain.BudgetLineItem, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.GetLine")
	defer span.End()

	return s.store.GetLine(ctx, lineID)
}

// ============================================================
// Aggregator
// ============================================================

// Recalculate recomputes a budget's roll-up totals from its current line
// items and writes them back. It is idempotent: with no intervening line
// mutation, two consecutive calls produce identical totals. The write is
// conditional on the budget's version and retried a bounded number of times
// so a concurrent revision application cannot be overwritten silently.
func (s *BudgetService) Recalculate(ctx context.Context, budgetID string) (*domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.Recalculate")
	defer span.End()
	span.SetAttributes(attribute.String("budget.id", budgetID))

	var lastErr error
	for attempt := 0; attempt <= recalcRetries; attempt++ {
		b, err := s.store.GetBudget(ctx, budgetID)
		if err != nil {
			return nil, err
		}
		lines, err := s.store.ListLines(ctx, budgetID)
		if err != nil {
			s.metrics.IncrStoreError("store")
			return nil, err
		}

		var totalBudget, totalActual, totalCommitted int64
		for i := range lines {
			totalBudget += lines[i].AnnualBudget
			totalActual += lines[i].AnnualActual
			totalCommitted += lines[i].AnnualCommitted
		}

		b.TotalBudget = totalBudget
		b.TotalActual = totalActual
		b.TotalCommitted = totalCommitted
		b.TotalAvailable = totalBudget - totalActual - totalCommitted
		b.TotalVariance = totalBudget - totalActual
		b.VariancePercent = percentOf(b.TotalVariance, totalBudget)
		b.UpdatedAt = time.Now().UTC()

		lastErr = s.store.UpdateBudgetChecked(ctx, b, b.Version)
		if lastErr == nil {
			s.metrics.IncrRecalculation()
			return b, nil
		}

		var conflict *domain.ErrConflict
		if !errors.As(lastErr, &conflict) {
			s.metrics.IncrStoreError("store")
			return nil, lastErr
		}
		s.logger.Warn("recalculation lost version race, retrying",
			zap.String("budget_id", budgetID),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, lastErr
}

// ============================================================
// Account catalog
// ============================================================

func (s *BudgetService) lookupAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	if acc, ok := s.accounts.Get(accountID); ok {
		s.metrics.IncrCacheHit("accounts")
		return acc, nil
	}
	s.metrics.IncrCacheMiss("accounts")

	acc, err := s.catalog.GetAccount(ctx, accountID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if !errors.As(err, &notFound) {
			s.metrics.IncrStoreError("catalog")
		}
		return nil, err
	}
	s.accounts.Set(accountID, acc)
	return acc, nil
}
