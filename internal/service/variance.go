package service

import (
	"context"
	"sort"
	"time"

	"github.com/ledgerline/budget-engine/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// topOutliers is how many over/under-budget lines a report surfaces.
const topOutliers = 5

// Variance produces a variance report for a budget as of the given date.
// Read-only: the budget and its lines are fetched and analyzed, nothing is
// written.
func (s *BudgetService) Variance(ctx context.Context, budgetID string, asOf time.Time) (*domain.BudgetVariance, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.Variance")
	defer span.End()
	span.SetAttributes(attribute.String("budget.id", budgetID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("variance", time.Since(start)) }()

	b, lines, err := s.fetchBudgetWithLines(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	return AnalyzeVariance(b, lines, asOf, s.varianceCfg), nil
}

// fetchBudgetWithLines loads a budget and its lines concurrently; the two
// reads are independent.
func (s *BudgetService) fetchBudgetWithLines(ctx context.Context, budgetID string) (*domain.Budget, []domain.BudgetLineItem, error) {
	var (
		b     *domain.Budget
		lines []domain.BudgetLineItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		b, err = s.store.GetBudget(gctx, budgetID)
		return err
	})
	g.Go(func() error {
		var err error
		lines, err = s.store.ListLines(gctx, budgetID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return b, lines, nil
}

// AnalyzeVariance computes a full variance report: per line, per account
// type and sub-type, overall classification, and the five largest over- and
// under-budget outliers. Pure function over its inputs.
func AnalyzeVariance(b *domain.Budget, lines []domain.BudgetLineItem, asOf time.Time, cfg domain.VarianceConfig) *domain.BudgetVariance {
	currentFM := domain.FiscalMonthOf(asOf)

	report := &domain.BudgetVariance{
		BudgetID:           b.ID,
		BudgetCode:         b.Code,
		FiscalYear:         b.FiscalYear,
		AsOfDate:           asOf,
		CurrentFiscalMonth: currentFM,
		ByAccountType:      make(map[string]*domain.GroupVariance),
		ByAccountSubType:   make(map[string]*domain.GroupVariance),
		Lines:              make([]domain.LineVariance, 0, len(lines)),
	}

	for i := range lines {
		line := &lines[i]
		lv := analyzeLine(line, currentFM, cfg)
		report.Lines = append(report.Lines, lv)

		report.TotalBudget += lv.Budget
		report.TotalActual += lv.Actual
		report.TotalCommitted += lv.Committed

		addToGroup(report.ByAccountType, line.AccountType, &lv)
		if line.AccountSubType != "" {
			addToGroup(report.ByAccountSubType, line.AccountSubType, &lv)
		}
	}

	report.TotalAvailable = report.TotalBudget - report.TotalActual - report.TotalCommitted
	report.TotalVariance = report.TotalBudget - report.TotalActual
	report.VariancePercent = percentOf(report.TotalVariance, report.TotalBudget)
	report.VarianceStatus = cfg.Classify(report.VariancePercent)

	for _, g := range report.ByAccountType {
		finishGroup(g, cfg)
	}
	for _, g := range report.ByAccountSubType {
		finishGroup(g, cfg)
	}

	report.TopOverBudget, report.TopUnderBudget = pickOutliers(report.Lines)
	return report
}

func analyzeLine(line *domain.BudgetLineItem, currentFM int, cfg domain.VarianceConfig) domain.LineVariance {
	lv := domain.LineVariance{
		LineID:         line.ID,
		AccountID:      line.AccountID,
		AccountCode:    line.AccountCode,
		AccountName:    line.AccountName,
		AccountType:    line.AccountType,
		AccountSubType: line.AccountSubType,
		Budget:         line.AnnualBudget,
		Actual:         line.AnnualActual,
		Committed:      line.AnnualCommitted,
	}
	lv.Available = lv.Budget - lv.Actual - lv.Committed
	lv.Variance = lv.Budget - lv.Actual
	lv.VariancePercent = percentOf(lv.Variance, lv.Budget)
	lv.Status = cfg.Classify(lv.VariancePercent)

	for _, p := range line.PeriodAmounts {
		if p.FiscalMonth == currentFM {
			lv.PeriodBudget = p.BudgetAmount
			lv.PeriodActual = p.ActualAmount
			lv.PeriodVariance = p.BudgetAmount - p.ActualAmount
		}
		if p.FiscalMonth <= currentFM {
			lv.YTDBudget += p.BudgetAmount
			lv.YTDActual += p.ActualAmount
		}
	}
	lv.YTDVariance = lv.YTDBudget - lv.YTDActual
	lv.YTDVariancePercent = percentOf(lv.YTDVariance, lv.YTDBudget)
	return lv
}

func addToGroup(groups map[string]*domain.GroupVariance, key string, lv *domain.LineVariance) {
	g, ok := groups[key]
	if !ok {
		g = &domain.GroupVariance{}
		groups[key] = g
	}
	g.Budget += lv.Budget
	g.Actual += lv.Actual
	g.Committed += lv.Committed
	g.LineCount++
}

func finishGroup(g *domain.GroupVariance, cfg domain.VarianceConfig) {
	g.Available = g.Budget - g.Actual - g.Committed
	g.Variance = g.Budget - g.Actual
	g.VariancePercent = percentOf(g.Variance, g.Budget)
	g.Status = cfg.Classify(g.VariancePercent)
}

// pickOutliers sorts lines by signed variance ascending: the most negative
// (over budget) head the over list, the most positive tail is reversed into
// the under list.
func pickOutliers(lines []domain.LineVariance) (over, under []domain.LineVariance) {
	sorted := make([]domain.LineVariance, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Variance < sorted[j].Variance
	})

	n := len(sorted)
	overN := topOutliers
	if overN > n {
		overN = n
	}
	over = make([]domain.LineVariance, overN)
	copy(over, sorted[:overN])

	underN := topOutliers
	if underN > n {
		underN = n
	}
	under = make([]domain.LineVariance, 0, underN)
	for i := n - 1; i >= n-underN; i-- {
		under = append(under, sorted[i])
	}
	return over, under
}
