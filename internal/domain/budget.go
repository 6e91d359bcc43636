// Package domain defines the data records the budget engine produces and
// consumes: budgets, line items, period tables, revisions, variance reports
// and forecasts. All money values are int64 in the currency's minor unit
// (cents); percentages are float64.
package domain

import (
	"strings"
	"time"
)

// BudgetStatus is the lifecycle state of a budget.
type BudgetStatus string

const (
	StatusDraft           BudgetStatus = "draft"
	StatusPendingApproval BudgetStatus = "pending_approval"
	StatusApproved        BudgetStatus = "approved"
	StatusRejected        BudgetStatus = "rejected"
	StatusActive          BudgetStatus = "active"
	StatusRevised         BudgetStatus = "revised"
)

// BudgetType classifies what a budget covers.
type BudgetType string

const (
	TypeOperating BudgetType = "operating"
	TypeCapital   BudgetType = "capital"
	TypeProject   BudgetType = "project"
	TypeOther     BudgetType = "other"
)

// PeriodType is the granularity of a budget's period table.
type PeriodType string

const PeriodMonthly PeriodType = "monthly"

// AllocationMethod is the policy used to spread an annual amount across
// the twelve fiscal months.
type AllocationMethod string

const (
	AllocationEqual       AllocationMethod = "equal"
	AllocationFrontLoaded AllocationMethod = "front_loaded"
	AllocationBackLoaded  AllocationMethod = "back_loaded"
	AllocationCustom      AllocationMethod = "custom"
)

// Budget is one fiscal-year spending plan. Roll-up totals are derived from
// the budget's line items and are never edited directly.
type Budget struct {
	ID          string `json:"id"`
	CompanyID   string `json:"company_id"`
	Name        string `json:"name"`
	Code        string `json:"code"` // unique, e.g. BUD-2026-OP
	Description string `json:"description,omitempty"`

	Type       BudgetType `json:"type"`
	FiscalYear int        `json:"fiscal_year"` // FY ends June 30 of this year
	PeriodType PeriodType `json:"period_type"`
	StartDate  time.Time  `json:"start_date"`
	EndDate    time.Time  `json:"end_date"`

	DepartmentID string `json:"department_id,omitempty"`
	ProjectID    string `json:"project_id,omitempty"`
	Currency     string `json:"currency"`

	TotalBudget     int64   `json:"total_budget"`
	TotalActual     int64   `json:"total_actual"`
	TotalCommitted  int64   `json:"total_committed"`
	TotalAvailable  int64   `json:"total_available"`
	TotalVariance   int64   `json:"total_variance"`
	VariancePercent float64 `json:"variance_percent"`

	Status   BudgetStatus `json:"status"`
	Version  int          `json:"version"`
	IsLocked bool         `json:"is_locked"`

	ParentBudgetID string `json:"parent_budget_id,omitempty"`
	HasChildren    bool   `json:"has_children"`

	SubmittedBy   string     `json:"submitted_by,omitempty"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	ApprovedBy    string     `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	ApprovalNotes string     `json:"approval_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy string    `json:"created_by"`
	UpdatedBy string    `json:"updated_by"`
}

// BudgetLineItem is one account's annual allocation within a budget.
// Account code/name/type are snapshotted from the catalog at creation time
// and intentionally never re-synced, so historical reports keep the labels
// the account carried when the line was planned.
type BudgetLineItem struct {
	ID       string `json:"id"`
	BudgetID string `json:"budget_id"`

	AccountID      string `json:"account_id"`
	AccountCode    string `json:"account_code"`
	AccountName    string `json:"account_name"`
	AccountType    string `json:"account_type"`
	AccountSubType string `json:"account_sub_type,omitempty"`

	Description string `json:"description,omitempty"`

	AnnualBudget    int64   `json:"annual_budget"`
	AnnualActual    int64   `json:"annual_actual"`
	AnnualCommitted int64   `json:"annual_committed"`
	AnnualAvailable int64   `json:"annual_available"`
	AnnualVariance  int64   `json:"annual_variance"`
	VariancePercent float64 `json:"variance_percent"`

	PeriodAmounts    []BudgetPeriodAmount `json:"period_amounts"`
	AllocationMethod AllocationMethod     `json:"allocation_method"`

	DepartmentID string `json:"department_id,omitempty"`
	ProjectID    string `json:"project_id,omitempty"`
	CostCenterID string `json:"cost_center_id,omitempty"`

	IsLocked bool `json:"is_locked"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy string    `json:"created_by"`
	UpdatedBy string    `json:"updated_by"`
}

// BudgetPeriodAmount is one fiscal month's budget/actual pair for one line.
// The whole 12-entry table is replaced, never patched, when a line's annual
// amount or allocation method changes.
type BudgetPeriodAmount struct {
	Period        int `json:"period"`       // 1-12, fiscal order
	FiscalMonth   int `json:"fiscal_month"` // fiscal month 1 = July
	CalendarMonth int `json:"calendar_month"`
	CalendarYear  int `json:"calendar_year"`

	BudgetAmount    int64   `json:"budget_amount"`
	ActualAmount    int64   `json:"actual_amount"`
	CommittedAmount int64   `json:"committed_amount"`
	AvailableAmount int64   `json:"available_amount"`
	Variance        int64   `json:"variance"`
	VariancePercent float64 `json:"variance_percent"`

	YTDBudget          int64   `json:"ytd_budget"`
	YTDActual          int64   `json:"ytd_actual"`
	YTDVariance        int64   `json:"ytd_variance"`
	YTDVariancePercent float64 `json:"ytd_variance_percent"`
}

// RevisionStatus is the lifecycle state of a budget revision.
type RevisionStatus string

const (
	RevisionPending  RevisionStatus = "pending"
	RevisionApproved RevisionStatus = "approved"
	RevisionRejected RevisionStatus = "rejected"
)

// BudgetRevision is an immutable record of a proposed set of line-amount
// changes. Once applied or rejected it is never mutated again; revisions form
// an append-only audit ledger for the owning budget.
type BudgetRevision struct {
	ID       string `json:"id"`
	BudgetID string `json:"budget_id"`

	RevisionNumber  int    `json:"revision_number"`
	PreviousVersion int    `json:"previous_version"`
	NewVersion      int    `json:"new_version"`
	Reason          string `json:"reason"`

	PreviousTotal int64 `json:"previous_total"`
	NewTotal      int64 `json:"new_total"`
	ChangeAmount  int64 `json:"change_amount"`

	Changes []BudgetLineChange `json:"changes"`

	Status RevisionStatus `json:"status"`

	CreatedAt  time.Time  `json:"created_at"`
	CreatedBy  string     `json:"created_by"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
}

// BudgetLineChange is one line's delta inside a revision. It references the
// line by id only; deleting a line never cascades into past revisions.
type BudgetLineChange struct {
	LineID         string `json:"line_id"`
	AccountCode    string `json:"account_code"`
	AccountName    string `json:"account_name"`
	PreviousAmount int64  `json:"previous_amount"`
	NewAmount      int64  `json:"new_amount"`
	ChangeAmount   int64  `json:"change_amount"`
	Reason         string `json:"reason,omitempty"`
}

// RevisionBatch is the all-or-nothing unit the Revision Manager hands to the
// store when applying a revision: every changed line with its regenerated
// period table, the revision's terminal status, and the budget's version bump.
type RevisionBatch struct {
	RevisionID string            `json:"revision_id"`
	Budget     *Budget           `json:"budget"`
	Lines      []*BudgetLineItem `json:"lines"`
	ResolvedBy string            `json:"resolved_by"`
	ResolvedAt time.Time         `json:"resolved_at"`
}

// BudgetFilter selects budgets in store queries. Zero values mean "no
// constraint"; Search is a client-side substring match on name/code/description.
type BudgetFilter struct {
	CompanyID    string
	FiscalYear   int
	Type         BudgetType
	Status       BudgetStatus
	DepartmentID string
	ProjectID    string
	Search       string
}

// MatchesSearch reports whether b matches the filter's substring search on
// name, code or description. Equality fields are pushed to the store; this
// part is applied client-side.
func (f BudgetFilter) MatchesSearch(b *Budget) bool {
	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(b.Name), needle) ||
		strings.Contains(strings.ToLower(b.Code), needle) ||
		strings.Contains(strings.ToLower(b.Description), needle)
}

// Account is a record from the account catalog, resolved once at line
// creation to snapshot code/name/type onto the line.
type Account struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	SubType  string `json:"sub_type,omitempty"`
	IsActive bool   `json:"is_active"`
}
