// Package service implements the budget engine: period allocation, roll-up
// aggregation, variance analysis, forecasting, revisions and the budget
// lifecycle. BudgetService orchestrates the document store and account
// catalog; the allocation/variance/forecast computations are pure functions.
package service

import (
	"fmt"

	"github.com/ledgerline/budget-engine/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	frontShare = decimal.NewFromFloat(0.6)
	backShare  = decimal.NewFromFloat(0.4)
	six        = decimal.NewFromInt(6)
	hundred    = decimal.NewFromInt(100)
)

// AllocatePeriods distributes an annual amount (minor currency units) into
// twelve fiscal-month buckets. Per-month amounts are floored and the rounding
// remainder is absorbed entirely into period 12, so the period amounts always
// sum exactly to the annual amount. Actual/committed fields start at zero.
func AllocatePeriods(annual int64, method domain.AllocationMethod, custom []int64, fiscalYear int) ([]domain.BudgetPeriodAmount, error) {
	amounts, err := allocationAmounts(annual, method, custom)
	if err != nil {
		return nil, err
	}

	periods := make([]domain.BudgetPeriodAmount, 12)
	var ytd int64
	for i, amt := range amounts {
		p := i + 1
		calMonth, calYear := domain.CalendarFor(fiscalYear, p)
		ytd += amt
		periods[i] = domain.BudgetPeriodAmount{
			Period:             p,
			FiscalMonth:        p,
			CalendarMonth:      calMonth,
			CalendarYear:       calYear,
			BudgetAmount:       amt,
			AvailableAmount:    amt,
			Variance:           amt,
			VariancePercent:    percentOf(amt, amt),
			YTDBudget:          ytd,
			YTDVariance:        ytd,
			YTDVariancePercent: percentOf(ytd, ytd),
		}
	}
	return periods, nil
}

func allocationAmounts(annual int64, method domain.AllocationMethod, custom []int64) ([12]int64, error) {
	var amounts [12]int64

	switch method {
	case domain.AllocationEqual:
		equalSplit(annual, &amounts)

	case domain.AllocationFrontLoaded:
		loadedSplit(annual, frontShare, backShare, &amounts)

	case domain.AllocationBackLoaded:
		loadedSplit(annual, backShare, frontShare, &amounts)

	case domain.AllocationCustom:
		// Without explicit amounts, custom falls back to an equal split.
		if len(custom) == 0 {
			equalSplit(annual, &amounts)
			break
		}
		if len(custom) != 12 {
			return amounts, &domain.ErrValidation{
				Field:   "custom_amounts",
				Message: fmt.Sprintf("expected 12 amounts, got %d", len(custom)),
			}
		}
		var sum int64
		for i, amt := range custom {
			amounts[i] = amt
			sum += amt
		}
		if sum != annual {
			return amounts, &domain.ErrValidation{
				Field:   "custom_amounts",
				Message: fmt.Sprintf("amounts sum to %d, annual budget is %d", sum, annual),
			}
		}

	default:
		return amounts, &domain.ErrValidation{
			Field:   "allocation_method",
			Message: fmt.Sprintf("unknown method %q", method),
		}
	}

	return amounts, nil
}

func equalSplit(annual int64, amounts *[12]int64) {
	per := annual / 12
	for i := 0; i < 11; i++ {
		amounts[i] = per
	}
	amounts[11] = annual - 11*per
}

// loadedSplit spreads firstShare of the annual amount over fiscal months 1-6
// and secondShare over months 7-12, flooring each month and pushing the
// residual into month 12.
func loadedSplit(annual int64, firstShare, secondShare decimal.Decimal, amounts *[12]int64) {
	total := decimal.NewFromInt(annual)
	first := total.Mul(firstShare).Div(six).Floor().IntPart()
	second := total.Mul(secondShare).Div(six).Floor().IntPart()

	var sum int64
	for i := 0; i < 6; i++ {
		amounts[i] = first
		sum += first
	}
	for i := 6; i < 11; i++ {
		amounts[i] = second
		sum += second
	}
	amounts[11] = annual - sum
}

// percentOf returns part/whole as a percentage rounded to two decimals,
// or 0 when whole is zero.
func percentOf(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return decimal.NewFromInt(part).
		Div(decimal.NewFromInt(whole)).
		Mul(hundred).
		Round(2).
		InexactFloat64()
}
