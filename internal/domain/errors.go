package domain

import "fmt"

// Error types for consistent error handling across the engine.
// All of these are detected before any write happens, so a rejected
// operation never leaves partial state behind.

// ErrNotFound indicates a budget, line, revision or account id did not resolve.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrInvalidTransition indicates a lifecycle or revision operation was
// invoked from a status that does not permit it.
type ErrInvalidTransition struct {
	Operation string
	From      string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s from status %q", e.Operation, e.From)
}

// ErrLockedBudget indicates a mutation was attempted while the budget is locked.
type ErrLockedBudget struct {
	BudgetID string
}

func (e *ErrLockedBudget) Error() string {
	return fmt.Sprintf("budget is locked: %s", e.BudgetID)
}

// ErrEmptyBudget indicates approval was requested for a budget with no lines.
type ErrEmptyBudget struct {
	BudgetID string
}

func (e *ErrEmptyBudget) Error() string {
	return fmt.Sprintf("budget has no line items: %s", e.BudgetID)
}

// ErrHasActuals indicates a delete was attempted on a line with recorded
// actual spend.
type ErrHasActuals struct {
	LineID string
	Actual int64
}

func (e *ErrHasActuals) Error() string {
	return fmt.Sprintf("line %s has recorded actuals (%d) and cannot be deleted", e.LineID, e.Actual)
}

// ErrLineNotFound indicates a revision change references a line id that is
// not part of the budget.
type ErrLineNotFound struct {
	BudgetID string
	LineID   string
}

func (e *ErrLineNotFound) Error() string {
	return fmt.Sprintf("line %s not found in budget %s", e.LineID, e.BudgetID)
}

// ErrConflict indicates a conditional write lost a version race.
type ErrConflict struct {
	Resource string
	ID       string
	Version  int
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("version conflict on %s %s (expected version %d)", e.Resource, e.ID, e.Version)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrExternalService indicates a failure in the document store or catalog.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}
