package domain

import "time"

// ForecastConfig holds the forecast heuristics. Like the variance thresholds
// these are business policy and come from configuration.
type ForecastConfig struct {
	TrendGrowthRate float64 // applied on top of the linear run-rate
	HighConfidence  int     // confidence once MaturityMonths have elapsed
	LowConfidence   int     // confidence before that
	MaturityMonths  int     // fiscal months needed for high confidence
}

// DefaultForecastConfig mirrors the standard 5% growth / 80-60 split policy.
func DefaultForecastConfig() ForecastConfig {
	return ForecastConfig{
		TrendGrowthRate: 0.05,
		HighConfidence:  80,
		LowConfidence:   60,
		MaturityMonths:  6,
	}
}

// MonthlyProjection is one row of a forecast's 12-month projection table.
type MonthlyProjection struct {
	Period        int  `json:"period"`
	FiscalMonth   int  `json:"fiscal_month"`
	CalendarMonth int  `json:"calendar_month"`
	CalendarYear  int  `json:"calendar_year"`
	IsActual      bool `json:"is_actual"`

	BudgetAmount    int64 `json:"budget_amount"`
	ProjectedAmount int64 `json:"projected_amount"`

	CumulativeBudget   int64 `json:"cumulative_budget"`
	CumulativeForecast int64 `json:"cumulative_forecast"`
}

// BudgetForecast is a year-end spend projection computed from a budget's
// aggregated period tables.
type BudgetForecast struct {
	BudgetID           string    `json:"budget_id"`
	BudgetCode         string    `json:"budget_code"`
	FiscalYear         int       `json:"fiscal_year"`
	AsOfDate           time.Time `json:"as_of_date"`
	CurrentFiscalMonth int       `json:"current_fiscal_month"`

	TotalBudget int64 `json:"total_budget"`
	YTDBudget   int64 `json:"ytd_budget"`
	YTDActual   int64 `json:"ytd_actual"`

	LinearForecast      int64 `json:"linear_forecast"`
	TrendForecast       int64 `json:"trend_forecast"`
	SeasonalForecast    int64 `json:"seasonal_forecast"`
	RecommendedForecast int64 `json:"recommended_forecast"`

	// Maturity heuristic, not a statistical interval.
	ForecastConfidence int `json:"forecast_confidence"`

	ProjectedVariance        int64   `json:"projected_variance"`
	ProjectedVariancePercent float64 `json:"projected_variance_percent"`

	MonthlyProjections []MonthlyProjection `json:"monthly_projections"`
}
