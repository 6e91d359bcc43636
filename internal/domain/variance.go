package domain

import "time"

// VarianceStatus classifies how far a line or budget has drifted from plan.
// Classification is sign-then-magnitude: non-negative variance is favorable,
// negative variance is bucketed by |variance percent| against the configured
// thresholds.
type VarianceStatus string

const (
	VarianceFavorable   VarianceStatus = "favorable"
	VarianceMinor       VarianceStatus = "minor"
	VarianceModerate    VarianceStatus = "moderate"
	VarianceSignificant VarianceStatus = "significant"
	VarianceCritical    VarianceStatus = "critical"
)

// VarianceConfig holds the classification thresholds. These are business
// policy, not algorithm constants, and come from configuration.
type VarianceConfig struct {
	MinorThreshold       float64 // |pct| <= this -> minor
	ModerateThreshold    float64 // |pct| <= this -> moderate
	SignificantThreshold float64 // |pct| <= this -> significant, beyond -> critical
}

// DefaultVarianceConfig mirrors the standard 10/25/50 policy.
func DefaultVarianceConfig() VarianceConfig {
	return VarianceConfig{
		MinorThreshold:       10,
		ModerateThreshold:    25,
		SignificantThreshold: 50,
	}
}

// Classify applies the sign-then-magnitude rule to a variance percentage.
func (c VarianceConfig) Classify(variancePercent float64) VarianceStatus {
	if variancePercent >= 0 {
		return VarianceFavorable
	}
	abs := -variancePercent
	switch {
	case abs <= c.MinorThreshold:
		return VarianceMinor
	case abs <= c.ModerateThreshold:
		return VarianceModerate
	case abs <= c.SignificantThreshold:
		return VarianceSignificant
	default:
		return VarianceCritical
	}
}

// LineVariance is the per-line section of a variance report.
type LineVariance struct {
	LineID         string `json:"line_id"`
	AccountID      string `json:"account_id"`
	AccountCode    string `json:"account_code"`
	AccountName    string `json:"account_name"`
	AccountType    string `json:"account_type"`
	AccountSubType string `json:"account_sub_type,omitempty"`

	Budget          int64   `json:"budget"`
	Actual          int64   `json:"actual"`
	Committed       int64   `json:"committed"`
	Available       int64   `json:"available"`
	Variance        int64   `json:"variance"`
	VariancePercent float64 `json:"variance_percent"`

	Status VarianceStatus `json:"status"`

	// Current fiscal period, matched against the report's as-of date.
	PeriodBudget   int64 `json:"period_budget"`
	PeriodActual   int64 `json:"period_actual"`
	PeriodVariance int64 `json:"period_variance"`

	YTDBudget          int64   `json:"ytd_budget"`
	YTDActual          int64   `json:"ytd_actual"`
	YTDVariance        int64   `json:"ytd_variance"`
	YTDVariancePercent float64 `json:"ytd_variance_percent"`
}

// GroupVariance re-aggregates lines per account type or sub-type.
type GroupVariance struct {
	Budget          int64          `json:"budget"`
	Actual          int64          `json:"actual"`
	Committed       int64          `json:"committed"`
	Available       int64          `json:"available"`
	Variance        int64          `json:"variance"`
	VariancePercent float64        `json:"variance_percent"`
	Status          VarianceStatus `json:"status"`
	LineCount       int            `json:"line_count"`
}

// BudgetVariance is a full variance report: overall, per account type and
// sub-type, per line, plus the top over/under-budget outliers.
type BudgetVariance struct {
	BudgetID           string    `json:"budget_id"`
	BudgetCode         string    `json:"budget_code"`
	FiscalYear         int       `json:"fiscal_year"`
	AsOfDate           time.Time `json:"as_of_date"`
	CurrentFiscalMonth int       `json:"current_fiscal_month"`

	TotalBudget     int64          `json:"total_budget"`
	TotalActual     int64          `json:"total_actual"`
	TotalCommitted  int64          `json:"total_committed"`
	TotalAvailable  int64          `json:"total_available"`
	TotalVariance   int64          `json:"total_variance"`
	VariancePercent float64        `json:"variance_percent"`
	VarianceStatus  VarianceStatus `json:"variance_status"`

	ByAccountType    map[string]*GroupVariance `json:"by_account_type"`
	ByAccountSubType map[string]*GroupVariance `json:"by_account_sub_type"`

	Lines          []LineVariance `json:"lines"`
	TopOverBudget  []LineVariance `json:"top_over_budget"`
	TopUnderBudget []LineVariance `json:"top_under_budget"`
}
