package domain

// Request payloads for the engine's mutating operations. Every mutating call
// also takes an explicit actor id; the engine never derives the current user
// from ambient state.

// CreateBudgetRequest creates a draft budget for one fiscal year.
type CreateBudgetRequest struct {
	CompanyID      string     `json:"company_id"`
	Name           string     `json:"name"`
	Code           string     `json:"code"`
	Description    string     `json:"description,omitempty"`
	Type           BudgetType `json:"type"`
	FiscalYear     int        `json:"fiscal_year"`
	Currency       string     `json:"currency"`
	DepartmentID   string     `json:"department_id,omitempty"`
	ProjectID      string     `json:"project_id,omitempty"`
	ParentBudgetID string     `json:"parent_budget_id,omitempty"`
}

// UpdateBudgetRequest patches a budget's descriptive fields. Roll-up totals,
// status and version are never written through this path.
type UpdateBudgetRequest struct {
	Name         *string `json:"name,omitempty"`
	Description  *string `json:"description,omitempty"`
	DepartmentID *string `json:"department_id,omitempty"`
	ProjectID    *string `json:"project_id,omitempty"`
}

// CopyBudgetRequest clones a budget and its lines into a new fiscal year.
type CopyBudgetRequest struct {
	FiscalYear int    `json:"fiscal_year"`
	Name       string `json:"name"`
	Code       string `json:"code"`
}

// CreateLineRequest adds one account's annual allocation to a budget.
type CreateLineRequest struct {
	AccountID        string           `json:"account_id"`
	Description      string           `json:"description,omitempty"`
	AnnualBudget     int64            `json:"annual_budget"`
	AllocationMethod AllocationMethod `json:"allocation_method"`
	CustomAmounts    []int64          `json:"custom_amounts,omitempty"` // required only for method=custom
	DepartmentID     string           `json:"department_id,omitempty"`
	ProjectID        string           `json:"project_id,omitempty"`
	CostCenterID     string           `json:"cost_center_id,omitempty"`
}

// UpdateLineRequest patches a line. Changing the annual amount or the
// allocation method regenerates the whole period table.
type UpdateLineRequest struct {
	Description      *string           `json:"description,omitempty"`
	AnnualBudget     *int64            `json:"annual_budget,omitempty"`
	AllocationMethod *AllocationMethod `json:"allocation_method,omitempty"`
	CustomAmounts    []int64           `json:"custom_amounts,omitempty"`
	DepartmentID     *string           `json:"department_id,omitempty"`
	ProjectID        *string           `json:"project_id,omitempty"`
	CostCenterID     *string           `json:"cost_center_id,omitempty"`
}

// ApprovalAction is the decision taken on a pending-approval budget.
type ApprovalAction string

const (
	ActionApprove ApprovalAction = "approve"
	ActionReject  ApprovalAction = "reject"
)

// ApprovalRequest resolves a pending-approval budget.
type ApprovalRequest struct {
	Action ApprovalAction `json:"action"`
	Notes  string         `json:"notes,omitempty"`
}

// RevisionChangeRequest proposes a new annual amount for one line.
type RevisionChangeRequest struct {
	LineID    string `json:"line_id"`
	NewAmount int64  `json:"new_amount"`
	Reason    string `json:"reason,omitempty"`
}

// ProposeRevisionRequest proposes a set of line-amount changes.
type ProposeRevisionRequest struct {
	Reason  string                  `json:"reason"`
	Changes []RevisionChangeRequest `json:"changes"`
}

// EngineMetrics is the snapshot served by GET /v1/metrics/engine.
type EngineMetrics struct {
	Recalculations    int64   `json:"recalculations"`
	Transitions       int64   `json:"transitions"`
	RevisionsProposed int64   `json:"revisions_proposed"`
	RevisionsApplied  int64   `json:"revisions_applied"`
	StoreErrors       int64   `json:"store_errors"`
	CacheHitRate      float64 `json:"cache_hit_rate"`
	Period            string  `json:"period"`
}
