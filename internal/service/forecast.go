package service

import (
	"context"
	"time"

	"github.com/ledgerline/budget-engine/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// Forecast produces a year-end spend projection for a budget as of the given
// date. Read-only, like Variance.
func (s *BudgetService) Forecast(ctx context.Context, budgetID string, asOf time.Time) (*domain.BudgetForecast, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.Forecast")
	defer span.End()
	span.SetAttributes(attribute.String("budget.id", budgetID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("forecast", time.Since(start)) }()

	b, lines, err := s.fetchBudgetWithLines(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	return GenerateForecast(b, lines, asOf, s.forecastCfg), nil
}

// monthTotal is one fiscal month's budget/actual pair aggregated across all
// lines of a budget.
type monthTotal struct {
	budget int64
	actual int64
}

// GenerateForecast projects year-end spend with three methods and recommends
// the average of the linear run-rate and the seasonal projection. Pure
// function over its inputs.
//
// linear:   ytdActual extrapolated at the observed monthly run rate.
// trend:    linear with the configured growth rate on top.
// seasonal: remaining months' budgets scaled by the deviation ratio observed
//           so far (ytdActual / ytdBudget).
func GenerateForecast(b *domain.Budget, lines []domain.BudgetLineItem, asOf time.Time, cfg domain.ForecastConfig) *domain.BudgetForecast {
	currentFM := domain.FiscalMonthOf(asOf)

	var months [12]monthTotal
	for i := range lines {
		for _, p := range lines[i].PeriodAmounts {
			if p.Period < 1 || p.Period > 12 {
				continue
			}
			months[p.Period-1].budget += p.BudgetAmount
			months[p.Period-1].actual += p.ActualAmount
		}
	}

	var totalBudget, ytdBudget, ytdActual, remainingBudget int64
	for i, m := range months {
		totalBudget += m.budget
		if i < currentFM {
			ytdBudget += m.budget
			ytdActual += m.actual
		} else {
			remainingBudget += m.budget
		}
	}

	f := &domain.BudgetForecast{
		BudgetID:           b.ID,
		BudgetCode:         b.Code,
		FiscalYear:         b.FiscalYear,
		AsOfDate:           asOf,
		CurrentFiscalMonth: currentFM,
		TotalBudget:        totalBudget,
		YTDBudget:          ytdBudget,
		YTDActual:          ytdActual,
	}

	remaining := int64(12 - currentFM)
	actual := decimal.NewFromInt(ytdActual)

	// Linear run rate: ytdActual + (ytdActual / elapsed) * remaining.
	linear := actual
	if currentFM > 0 {
		runRate := actual.Div(decimal.NewFromInt(int64(currentFM)))
		linear = actual.Add(runRate.Mul(decimal.NewFromInt(remaining)))
	}
	f.LinearForecast = linear.Round(0).IntPart()

	growth := decimal.NewFromFloat(1).Add(decimal.NewFromFloat(cfg.TrendGrowthRate))
	f.TrendForecast = linear.Mul(growth).Round(0).IntPart()

	// Seasonal: assume the rest of the year deviates from budget by the same
	// ratio observed so far. With no budget elapsed yet the ratio is 1.
	ratio := decimal.NewFromInt(1)
	if ytdBudget != 0 {
		ratio = actual.Div(decimal.NewFromInt(ytdBudget))
	}
	seasonal := actual.Add(decimal.NewFromInt(remainingBudget).Mul(ratio))
	f.SeasonalForecast = seasonal.Round(0).IntPart()

	f.RecommendedForecast = linear.Add(seasonal).
		Div(decimal.NewFromInt(2)).
		Round(0).
		IntPart()

	if currentFM >= cfg.MaturityMonths {
		f.ForecastConfidence = cfg.HighConfidence
	} else {
		f.ForecastConfidence = cfg.LowConfidence
	}

	f.ProjectedVariance = totalBudget - f.RecommendedForecast
	f.ProjectedVariancePercent = percentOf(f.ProjectedVariance, totalBudget)

	f.MonthlyProjections = projectMonths(b.FiscalYear, months, currentFM, ratio)
	return f
}

// projectMonths builds the 12-row projection table: elapsed months carry
// actuals, future months carry budget scaled by the observed ratio, with
// running cumulative budget and forecast totals.
func projectMonths(fiscalYear int, months [12]monthTotal, currentFM int, ratio decimal.Decimal) []domain.MonthlyProjection {
	projections := make([]domain.MonthlyProjection, 12)
	var cumBudget, cumForecast int64

	for i, m := range months {
		p := i + 1
		calMonth, calYear := domain.CalendarFor(fiscalYear, p)

		isActual := i < currentFM
		projected := m.actual
		if !isActual {
			projected = decimal.NewFromInt(m.budget).Mul(ratio).Round(0).IntPart()
		}

		cumBudget += m.budget
		cumForecast += projected

		projections[i] = domain.MonthlyProjection{
			Period:             p,
			FiscalMonth:        p,
			CalendarMonth:      calMonth,
			CalendarYear:       calYear,
			IsActual:           isActual,
			BudgetAmount:       m.budget,
			ProjectedAmount:    projected,
			CumulativeBudget:   cumBudget,
			CumulativeForecast: cumForecast,
		}
	}
	return projections
}
