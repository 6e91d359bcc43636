package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ledgerline/budget-engine/internal/domain"
)

func seedRevisableBudget(store *memStore) {
	seedBudget(store, "bud-1", 2026, domain.StatusActive)
	b := store.budgets["bud-1"]
	b.TotalBudget = 1_800_000
	store.budgets["bud-1"] = b
	seedLine(store, "l1", "bud-1", 1_200_000, 400_000, 2026)
	seedLine(store, "l2", "bud-1", 600_000, 100_000, 2026)
}

func TestProposeRevision(t *testing.T) {
	store := newMemStore()
	seedRevisableBudget(store)
	svc := newTestService(store)

	req := &domain.ProposeRevisionRequest{
		Reason: "Mid-year reforecast",
		Changes: []domain.RevisionChangeRequest{
			{LineID: "l1", NewAmount: 1_500_000, Reason: "headcount growth"},
			{LineID: "l2", NewAmount: 500_000},
		},
	}
	rev, err := svc.ProposeRevision(context.Background(), "bud-1", req, "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if rev.Status != domain.RevisionPending {
		t.Errorf("expected pending, got %s", rev.Status)
	}
	if rev.PreviousVersion != 1 || rev.NewVersion != 2 {
		t.Errorf("expected version 1 -> 2, got %d -> %d", rev.PreviousVersion, rev.NewVersion)
	}
	if rev.PreviousTotal != 1_800_000 || rev.NewTotal != 2_000_000 {
		t.Errorf("expected total 1800000 -> 2000000, got %d -> %d", rev.PreviousTotal, rev.NewTotal)
	}
	if rev.ChangeAmount != 200_000 {
		t.Errorf("expected change amount 200000, got %d", rev.ChangeAmount)
	}
	if len(rev.Changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(rev.Changes))
	}
	if rev.Changes[0].PreviousAmount != 1_200_000 || rev.Changes[0].ChangeAmount != 300_000 {
		t.Errorf("unexpected change delta: %+v", rev.Changes[0])
	}

	// Proposing is non-destructive.
	if store.lines["l1"].AnnualBudget != 1_200_000 {
		t.Error("proposing a revision must not touch the lines")
	}
	if store.budgets["bud-1"].Version != 1 {
		t.Error("proposing a revision must not bump the budget version")
	}
}

func TestProposeRevision_RequiresActiveOrApproved(t *testing.T) {
	store := newMemStore()
	seedBudget(store, "bud-1", 2026, domain.StatusDraft)
	seedLine(store, "l1", "bud-1", 1_200_000, 0, 2026)
	svc := newTestService(store)

	req := &domain.ProposeRevisionRequest{
		Changes: []domain.RevisionChangeRequest{{LineID: "l1", NewAmount: 1_000_000}},
	}
	_, err := svc.ProposeRevision(context.Background(), "bud-1", req, "user-1")
	var transErr *domain.ErrInvalidTransition
	if !errors.As(err, &transErr) {
		t.Fatalf("expected invalid-transition error, got %v", err)
	}
}

func TestProposeRevision_UnknownLine(t *testing.T) {
	store := newMemStore()
	seedRevisableBudget(store)
	svc := newTestService(store)

	req := &domain.ProposeRevisionRequest{
		Changes: []domain.RevisionChangeRequest{{LineID: "l-missing", NewAmount: 1_000}},
	}
	_, err := svc.ProposeRevision(context.Background(), "bud-1", req, "user-1")
	var lineErr *domain.ErrLineNotFound
	if !errors.As(err, &lineErr) {
		t.Fatalf("expected line-not-found error, got %v", err)
	}
}

func TestProposeRevision_EmptyChanges(t *testing.T) {
	store := newMemStore()
	seedRevisableBudget(store)
	svc := newTestService(store)

	_, err := svc.ProposeRevision(context.Background(), "bud-1", &domain.ProposeRevisionRequest{}, "user-1")
	var vErr *domain.ErrValidation
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApplyRevision(t *testing.T) {
	store := newMemStore()
	seedRevisableBudget(store)
	svc := newTestService(store)

	req := &domain.ProposeRevisionRequest{
		Reason: "Mid-year reforecast",
		Changes: []domain.RevisionChangeRequest{
			{LineID: "l1", NewAmount: 1_500_000},
		},
	}
	rev, err := svc.ProposeRevision(context.Background(), "bud-1", req, "user-1")
	if err != nil {
		t.Fatal(err)
	}

	applied, err := svc.ApplyRevision(context.Background(), rev.ID, "cfo-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if applied.Status != domain.RevisionApproved {
		t.Errorf("expected approved, got %s", applied.Status)
	}
	if applied.ResolvedBy != "cfo-1" || applied.ResolvedAt == nil {
		t.Error("expected resolution audit fields to be set")
	}

	line := store.lines["l1"]
	if line.AnnualBudget != 1_500_000 {
		t.Errorf("expected line annual 1500000, got %d", line.AnnualBudget)
	}
	if got := periodSum(line.PeriodAmounts); got != 1_500_000 {
		t.Errorf("expected regenerated table summing 1500000, got %d", got)
	}
	// Recorded spend survives the revision.
	if line.AnnualActual != 400_000 {
		t.Errorf("expected annual actual 400000 preserved, got %d", line.AnnualActual)
	}

	b := store.budgets["bud-1"]
	if b.Version != 2 {
		t.Errorf("expected budget version 2, got %d", b.Version)
	}
	if b.Status != domain.StatusRevised {
		t.Errorf("expected revised, got %s", b.Status)
	}
	if b.TotalBudget != 2_100_000 {
		t.Errorf("expected roll-up 2100000 after apply, got %d", b.TotalBudget)
	}
}

func TestApplyRevision_OnlyPending(t *testing.T) {
	store := newMemStore()
	seedRevisableBudget(store)
	svc := newTestService(store)

	req := &domain.ProposeRevisionRequest{
		Changes: []domain.RevisionChangeRequest{{LineID: "l1", NewAmount: 1_500_000}},
	}
	rev, err := svc.ProposeRevision(context.Background(), "bud-1", req, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ApplyRevision(context.Background(), rev.ID, "cfo-1"); err != nil {
		t.Fatal(err)
	}

	// A second apply finds the revision already resolved.
	_, err = svc.ApplyRevision(context.Background(), rev.ID, "cfo-1")
	var transErr *domain.ErrInvalidTransition
	if !errors.As(err, &transErr) {
		t.Fatalf("expected invalid-transition error, got %v", err)
	}
}

func TestApplyRevision_AtomicOnStoreFailure(t *testing.T) {
	store := newMemStore()
	seedRevisableBudget(store)
	svc := newTestService(store)

	req := &domain.ProposeRevisionRequest{
		Changes: []domain.RevisionChangeRequest{
			{LineID: "l1", NewAmount: 1_500_000},
			{LineID: "l2", NewAmount: 700_000},
		},
	}
	rev, err := svc.ProposeRevision(context.Background(), "bud-1", req, "user-1")
	if err != nil {
		t.Fatal(err)
	}

	store.batchErr = errStoreDown
	if _, err := svc.ApplyRevision(context.Background(), rev.ID, "cfo-1"); err == nil {
		t.Fatal("expected apply to fail")
	}

	// Nothing may have landed: not the lines, not the budget, not the revision.
	if store.lines["l1"].AnnualBudget != 1_200_000 || store.lines["l2"].AnnualBudget != 600_000 {
		t.Error("failed apply must leave the lines untouched")
	}
	if store.budgets["bud-1"].Version != 1 || store.budgets["bud-1"].Status != domain.StatusActive {
		t.Error("failed apply must leave the budget untouched")
	}
	if store.revisions[rev.ID].Status != domain.RevisionPending {
		t.Error("failed apply must leave the revision pending")
	}

	// Recovering the store lets the same revision apply cleanly.
	store.batchErr = nil
	if _, err := svc.ApplyRevision(context.Background(), rev.ID, "cfo-1"); err != nil {
		t.Fatalf("expected retry after recovery to succeed, got %v", err)
	}
}

func TestRejectRevision(t *testing.T) {
	store := newMemStore()
	seedRevisableBudget(store)
	svc := newTestService(store)

	req := &domain.ProposeRevisionRequest{
		Changes: []domain.RevisionChangeRequest{{LineID: "l1", NewAmount: 2_000_000}},
	}
	rev, err := svc.ProposeRevision(context.Background(), "bud-1", req, "user-1")
	if err != nil {
		t.Fatal(err)
	}

	rejected, err := svc.RejectRevision(context.Background(), rev.ID, "cfo-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rejected.Status != domain.RevisionRejected {
		t.Errorf("expected rejected, got %s", rejected.Status)
	}

	// Rejection leaves budget and lines exactly as proposed against.
	if store.lines["l1"].AnnualBudget != 1_200_000 {
		t.Error("rejection must not touch the lines")
	}
	if store.budgets["bud-1"].Version != 1 {
		t.Error("rejection must not bump the budget version")
	}

	// The ledger keeps the resolved revision.
	revs, err := svc.ListRevisions(context.Background(), "bud-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(revs) != 1 || revs[0].Status != domain.RevisionRejected {
		t.Errorf("unexpected ledger state: %+v", revs)
	}
}

func TestRevisionNumbersFollowVersions(t *testing.T) {
	store := newMemStore()
	seedRevisableBudget(store)
	svc := newTestService(store)

	req := &domain.ProposeRevisionRequest{
		Changes: []domain.RevisionChangeRequest{{LineID: "l1", NewAmount: 1_300_000}},
	}
	rev1, err := svc.ProposeRevision(context.Background(), "bud-1", req, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ApplyRevision(context.Background(), rev1.ID, "cfo-1"); err != nil {
		t.Fatal(err)
	}

	req = &domain.ProposeRevisionRequest{
		Changes: []domain.RevisionChangeRequest{{LineID: "l1", NewAmount: 1_400_000}},
	}
	rev2, err := svc.ProposeRevision(context.Background(), "bud-1", req, "user-1")
	if err != nil {
		t.Fatal(err)
	}

	if rev2.PreviousVersion != 2 || rev2.NewVersion != 3 {
		t.Errorf("expected version 2 -> 3, got %d -> %d", rev2.PreviousVersion, rev2.NewVersion)
	}
}
