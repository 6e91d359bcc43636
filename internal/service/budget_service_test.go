package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ledgerline/budget-engine/internal/domain"
)

func TestCreateBudget(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	req := &domain.CreateBudgetRequest{
		CompanyID:  "co-1",
		Name:       "FY2026 Operating Budget",
		Code:       "BUD-2026-OP",
		FiscalYear: 2026,
	}
	b, err := svc.CreateBudget(context.Background(), req, "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if b.Status != domain.StatusDraft {
		t.Errorf("expected draft, got %s", b.Status)
	}
	if b.Version != 1 {
		t.Errorf("expected version 1, got %d", b.Version)
	}
	if b.Type != domain.TypeOperating || b.Currency != "USD" {
		t.Errorf("expected defaults applied, got type %s currency %s", b.Type, b.Currency)
	}
	if b.StartDate.Year() != 2025 || int(b.StartDate.Month()) != 7 {
		t.Errorf("expected start 1 Jul 2025, got %v", b.StartDate)
	}
	if b.EndDate.Year() != 2026 || int(b.EndDate.Month()) != 6 {
		t.Errorf("expected end 30 Jun 2026, got %v", b.EndDate)
	}
	if b.CreatedBy != "user-1" {
		t.Errorf("expected creator user-1, got %s", b.CreatedBy)
	}
}

func TestCreateBudget_Validation(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	tests := []*domain.CreateBudgetRequest{
		{Code: "BUD-1", FiscalYear: 2026},             // missing name
		{Name: "Budget", FiscalYear: 2026},            // missing code
		{Name: "Budget", Code: "BUD-1", FiscalYear: 0}, // bad year
	}
	for i, req := range tests {
		_, err := svc.CreateBudget(context.Background(), req, "user-1")
		var vErr *domain.ErrValidation
		if !errors.As(err, &vErr) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestCreateBudget_MarksParent(t *testing.T) {
	store := newMemStore()
	seedBudget(store, "parent-1", 2026, domain.StatusActive)
	svc := newTestService(store)

	req := &domain.CreateBudgetRequest{
		Name:           "Engineering",
		Code:           "BUD-2026-ENG",
		FiscalYear:     2026,
		ParentBudgetID: "parent-1",
	}
	b, err := svc.CreateBudget(context.Background(), req, "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if b.ParentBudgetID != "parent-1" {
		t.Errorf("expected parent link, got %q", b.ParentBudgetID)
	}

	parent := store.budgets["parent-1"]
	if !parent.HasChildren {
		t.Error("expected parent to be flagged as having children")
	}
}

func TestUpdateBudget_LockedRejected(t *testing.T) {
	store := newMemStore()
	seedBudget(store, "bud-1", 2026, domain.StatusDraft)
	b := store.budgets["bud-1"]
	b.IsLocked = true
	store.budgets["bud-1"] = b
	svc := newTestService(store)

	name := "Renamed"
	_, err := svc.UpdateBudget(context.Background(), "bud-1", &domain.UpdateBudgetRequest{Name: &name}, "user-1")
	var lockErr *domain.ErrLockedBudget
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected locked-budget error, got %v", err)
	}
}

func TestSetLock_Roundtrip(t *testing.T) {
	store := newMemStore()
	seedBudget(store, "bud-1", 2026, domain.StatusActive)
	svc := newTestService(store)

	b, err := svc.SetLock(context.Background(), "bud-1", true, "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !b.IsLocked {
		t.Error("expected budget to be locked")
	}

	b, err = svc.SetLock(context.Background(), "bud-1", false, "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if b.IsLocked {
		t.Error("expected budget to be unlocked")
	}
}

func TestCreateLine_SnapshotsAccount(t *testing.T) {
	store := newMemStore()
	seedBudget(store, "bud-1", 2026, domain.StatusDraft)
	seedAccount(store, "acc-1", "5100", "Payroll", "expense", "personnel")
	svc := newTestService(store)

	req := &domain.CreateLineRequest{AccountID: "acc-1", AnnualBudget: 1_200_000}
	line, err := svc.CreateLine(context.Background(), "bud-1", req, "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if line.AccountCode != "5100" || line.AccountName != "Payroll" || line.AccountType != "expense" {
		t.Errorf("expected account snapshot, got %+v", line)
	}
	if line.AllocationMethod != domain.AllocationEqual {
		t.Errorf("expected equal allocation default, got %s", line.AllocationMethod)
	}
	if got := periodSum(line.PeriodAmounts); got != 1_200_000 {
		t.Errorf("periods sum to %d, expected 1200000", got)
	}

	// The roll-up runs as part of line creation.
	b := store.budgets["bud-1"]
	if b.TotalBudget != 1_200_000 {
		t.Errorf("expected total budget 1200000 after recalc, got %d", b.TotalBudget)
	}
	if b.TotalAvailable != 1_200_000 {
		t.Errorf("expected total available 1200000, got %d", b.TotalAvailable)
	}
}

func TestCreateLine_UnknownAccount(t *testing.T) {
	store := newMemStore()
	seedBudget(store, "bud-1", 2026, domain.StatusDraft)
	svc := newTestService(store)

	req := &domain.CreateLineRequest{AccountID: "acc-missing", AnnualBudget: 1_000}
	_, err := svc.CreateLine(context.Background(), "bud-1", req, "user-1")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestCreateLine_LockedBudget(t *testing.T) {
	store := newMemStore()
	seedBudget(store, "bud-1", 2026, domain.StatusDraft)
	b := store.budgets["bud-1"]
	b.IsLocked = true
	store.budgets["bud-1"] = b
	seedAccount(store, "acc-1", "5100", "Payroll", "expense", "")
	svc := newTestService(store)

	req := &domain.CreateLineRequest{AccountID: "acc-1", AnnualBudget: 1_000}
	_, err := svc.CreateLine(context.Background(), "bud-1", req, "user-1")
	var lockErr *domain.ErrLockedBudget
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected locked-budget error, got %v", err)
	}
}

func TestCreateLine_AccountCacheHit(t *testing.T) {
	store := newMemStore()
	seedBudget(store, "bud-1", 2026, domain.StatusDraft)
	seedAccount(store, "acc-1", "5100", "Payroll", "expense", "")
	svc := newTestService(store)

	for i := 0; i < 3; i++ {
		req := &domain.CreateLineRequest{AccountID: "acc-1", AnnualBudget: 1_000}
		if _, err := svc.CreateLine(context.Background(), "bud-1", req, "user-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}

	if store.accountCalls != 1 {
		t.Errorf("expected 1 catalog lookup, got %d", store.accountCalls)
	}
}

func TestUpdateLine_ReallocatesOnAmountChange(t *testing.T) {
	store := newMemStore()
	seedBudget(store, "bud-1", 2026, domain.StatusDraft)
	seedLine(store, "l1", "bud-1", 1_200_000, 300_000, 2026)

	// Simulate recorded spend inside the period table.
	line := store.lines["l1"]
	line.PeriodAmounts[0].ActualAmount = 300_000
	store.lines["l1"] = line

	svc := newTestService(store)

	newAnnual := int64(2_400_000)
	updated, err := svc.UpdateLine(context.Background(), "l1", &domain.UpdateLineRequest{AnnualBudget: &newAnnual}, "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got := periodSum(updated.PeriodAmounts); got != 2_400_000 {
		t.Errorf("periods sum to %d, expected 2400000", got)
	}
	// The table is replaced wholesale: its actuals restart at zero while the
	// line's annual actuals persist.
	if updated.PeriodAmounts[0].ActualAmount != 0 {
		t.Errorf("expected replaced table to carry no actuals, got %d", updated.PeriodAmounts[0].ActualAmount)
	}
	if updated.AnnualActual != 300_000 {
		t.Errorf("expected annual actual 300000 preserved, got %d", updated.AnnualActual)
	}
	if updated.AnnualAvailable != 2_100_000 {
		t.Errorf("expected annual available 2100000, got %d", updated.AnnualAvailable)
	}

	b := store.budgets["bud-1"]
	if b.TotalBudget != 2_400_000 {
		t.Errorf("expected roll-up 2400000, got %d", b.TotalBudget)
	}
}

func TestUpdateLine_DescriptionOnlyKeepsTable(t *testing.T) {
	store := newMemStore()
	seedBudget(store, "bud-1", 2026, domain.StatusDraft)
	seedLine(store, "l1", "bud-1", 1_200_000, 0, 2026)

	line := store.lines["l1"]
	line.PeriodAmounts[2].ActualAmount = 50_000
	store.lines["l1"] = line

	svc := newTestService(store)

	desc := "Quarterly software licenses"
	updated, err := svc.UpdateLine(context.Background(), "l1", &domain.UpdateLineRequest{Description: &desc}, "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if updated.Description != desc {
		t.Errorf("expected description update, got %q", updated.Description)
	}
	if updated.PeriodAmounts[2].ActualAmount != 50_000 {
		t.Error("expected period table to be untouched")
	}
}

func TestDeleteLine_WithActualsRejected(t *testing.T) {
	store := newMemStore()
	seedBudget(store, "bud-1", 2026, domain.StatusDraft)
	seedLine(store, "l1", "bud-1", 1_200_000, 42_000, 2026)
	svc := newTestService(store)

	err := svc.DeleteLine(context.Background(), "l1", "user-1")
	var actualsErr *domain.ErrHasActuals
	if !errors.As(err, &actualsErr) {
		t.Fatalf("expected has-actuals error, got %v", err)
	}
	if _, ok := store.lines["l1"]; !ok {
		t.Error("line must survive a rejected delete")
	}
}

func TestDeleteLine_RecalculatesRollup(t *testing.T) {
	store := newMemStore()
	seedBudget(store, "bud-1", 2026, domain.StatusDraft)
	seedLine(store, "l1", "bud-1", 1_200_000, 0, 2026)
	seedLine(store, "l2", "bud-1", 600_000, 0, 2026)
	svc := newTestService(store)

	if _, err := svc.Recalculate(context.Background(), "bud-1"); err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteLine(context.Background(), "l2", "user-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	b := store.budgets["bud-1"]
	if b.TotalBudget != 1_200_000 {
		t.Errorf("expected total budget 1200000 after delete, got %d", b.TotalBudget)
	}
}

func TestRecalculate_Idempotent(t *testing.T) {
	store := newMemStore()
	seedBudget(store, "bud-1", 2026, domain.StatusActive)
	seedLine(store, "l1", "bud-1", 1_200_000, 400_000, 2026)
	seedLine(store, "l2", "bud-1", 600_000, 100_000, 2026)
	svc := newTestService(store)

	first, err := svc.Recalculate(context.Background(), "bud-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := svc.Recalculate(context.Background(), "bud-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if first.TotalBudget != second.TotalBudget ||
		first.TotalActual != second.TotalActual ||
		first.TotalCommitted != second.TotalCommitted ||
		first.TotalAvailable != second.TotalAvailable ||
		first.TotalVariance != second.TotalVariance ||
		first.VariancePercent != second.VariancePercent {
		t.Errorf("recalculation is not idempotent: %+v vs %+v", first, second)
	}

	if first.TotalBudget != 1_800_000 {
		t.Errorf("expected total budget 1800000, got %d", first.TotalBudget)
	}
	if first.TotalActual != 500_000 {
		t.Errorf("expected total actual 500000, got %d", first.TotalActual)
	}
	if first.TotalAvailable != 1_300_000 {
		t.Errorf("expected total available 1300000, got %d", first.TotalAvailable)
	}
}

func TestRecalculate_RetriesOnVersionRace(t *testing.T) {
	store := newMemStore()
	seedBudget(store, "bud-1", 2026, domain.StatusActive)
	seedLine(store, "l1", "bud-1", 1_200_000, 0, 2026)
	store.conflictsLeft = 2
	svc := newTestService(store)

	b, err := svc.Recalculate(context.Background(), "bud-1")
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if b.TotalBudget != 1_200_000 {
		t.Errorf("expected total budget 1200000, got %d", b.TotalBudget)
	}
}

func TestRecalculate_GivesUpAfterBoundedRetries(t *testing.T) {
	store := newMemStore()
	seedBudget(store, "bud-1", 2026, domain.StatusActive)
	seedLine(store, "l1", "bud-1", 1_200_000, 0, 2026)
	store.conflictsLeft = 100
	svc := newTestService(store)

	_, err := svc.Recalculate(context.Background(), "bud-1")
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict error after retries exhausted, got %v", err)
	}
}

func TestCopyBudget(t *testing.T) {
	store := newMemStore()
	seedBudget(store, "bud-1", 2026, domain.StatusActive)
	seedLine(store, "l1", "bud-1", 1_200_000, 400_000, 2026)
	seedLine(store, "l2", "bud-1", 600_000, 50_000, 2026)
	svc := newTestService(store)

	req := &domain.CopyBudgetRequest{FiscalYear: 2027, Code: "BUD-2027-OP"}
	copied, err := svc.CopyBudget(context.Background(), "bud-1", req, "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if copied.ID == "bud-1" {
		t.Fatal("copy must get a new id")
	}
	if copied.Status != domain.StatusDraft || copied.Version != 1 {
		t.Errorf("expected fresh draft v1, got %s v%d", copied.Status, copied.Version)
	}
	if copied.FiscalYear != 2027 {
		t.Errorf("expected FY2027, got %d", copied.FiscalYear)
	}
	if copied.TotalBudget != 1_800_000 {
		t.Errorf("expected total budget 1800000, got %d", copied.TotalBudget)
	}
	// Actuals never carry into the new year.
	if copied.TotalActual != 0 {
		t.Errorf("expected zero actuals on copy, got %d", copied.TotalActual)
	}

	lines, err := svc.ListLines(context.Background(), copied.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 copied lines, got %d", len(lines))
	}
	for _, line := range lines {
		if line.AnnualActual != 0 {
			t.Errorf("line %s: expected zero actuals, got %d", line.ID, line.AnnualActual)
		}
		if line.PeriodAmounts[0].CalendarYear != 2026 {
			t.Errorf("line %s: expected period table for FY2027, got year %d",
				line.ID, line.PeriodAmounts[0].CalendarYear)
		}
	}
}

func TestQueryBudgets_Search(t *testing.T) {
	store := newMemStore()
	seedBudget(store, "bud-1", 2026, domain.StatusActive)
	seedBudget(store, "bud-2", 2026, domain.StatusDraft)
	b := store.budgets["bud-2"]
	b.Name = "Marketing Budget"
	store.budgets["bud-2"] = b
	svc := newTestService(store)

	results, err := svc.QueryBudgets(context.Background(), domain.BudgetFilter{Search: "marketing"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(results) != 1 || results[0].ID != "bud-2" {
		t.Errorf("expected only bud-2, got %+v", results)
	}
}
