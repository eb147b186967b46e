package promises

import (
	"context"
	"errors"
	"testing"
	"time"

	"collections-platform/internal/calls"
)

func newTestService() (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	s := NewService(repo)
	s.clock = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	return s, repo
}

func sourceCall() calls.Call {
	return calls.Call{ID: "call-1", ClientID: "client-1", DebtorID: "debtor-1"}
}

func TestRecordFromExtraction(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	ext := calls.CallExtraction{
		PromiseMade: true,
		Promise: &calls.PaymentPromise{
			Amount:      1234.56,
			PromiseDate: calls.Date{Time: time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)},
		},
	}
	if err := svc.RecordFromExtraction(ctx, sourceCall(), ext); err != nil {
		t.Fatalf("RecordFromExtraction: %v", err)
	}

	list, total, err := svc.List(ctx, "client-1", ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 {
		t.Fatalf("total = %d, want 1", total)
	}
	p := list[0]
	if p.AmountMinor != 123456 {
		t.Fatalf("amount_minor = %d, want 123456", p.AmountMinor)
	}
	if p.Status != StatusPending {
		t.Fatalf("status = %q, want pending", p.Status)
	}
	if p.CallID != "call-1" || p.DebtorID != "debtor-1" {
		t.Fatalf("linkage = %q/%q", p.CallID, p.DebtorID)
	}
	if !p.PromiseDate.Equal(time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("promise_date = %v", p.PromiseDate)
	}
}

func TestRecordFromExtractionRequiresPromise(t *testing.T) {
	svc, _ := newTestService()

	err := svc.RecordFromExtraction(context.Background(), sourceCall(), calls.CallExtraction{PromiseMade: false})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	seed := Promise{ID: "p-1", ClientID: "client-1", Status: StatusPending, AmountMinor: 1000}
	if err := repo.Create(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	p, err := svc.UpdateStatus(ctx, "client-1", "p-1", StatusFulfilled)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if p.Status != StatusFulfilled {
		t.Fatalf("status = %q", p.Status)
	}

	if _, err := svc.UpdateStatus(ctx, "client-1", "p-1", StatusOverdue); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("overdue by hand err = %v, want ErrInvalidArgument", err)
	}
	if _, err := svc.UpdateStatus(ctx, "client-1", "p-1", "settled"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("unknown status err = %v, want ErrInvalidArgument", err)
	}
}

func TestSweepOverdue(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }
	seeds := []Promise{
		{ID: "past", ClientID: "client-1", Status: StatusPending, PromiseDate: day(9)},
		{ID: "today", ClientID: "client-1", Status: StatusPending, PromiseDate: day(10)},
		{ID: "future", ClientID: "client-1", Status: StatusPending, PromiseDate: day(11)},
		{ID: "done", ClientID: "client-1", Status: StatusFulfilled, PromiseDate: day(1)},
	}
	for _, p := range seeds {
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("seed %s: %v", p.ID, err)
		}
	}

	changed, err := svc.SweepOverdue(ctx, "client-1")
	if err != nil {
		t.Fatalf("SweepOverdue: %v", err)
	}
	if changed != 1 {
		t.Fatalf("changed = %d, want 1", changed)
	}

	past, _ := repo.Get(ctx, "client-1", "past")
	if past.Status != StatusOverdue {
		t.Fatalf("past status = %q", past.Status)
	}
	today, _ := repo.Get(ctx, "client-1", "today")
	if today.Status != StatusPending {
		t.Fatalf("promise due today must stay pending, got %q", today.Status)
	}
}

func TestPendingSummary(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	seeds := []Promise{
		{ID: "a", ClientID: "client-1", Status: StatusPending, AmountMinor: 10000},
		{ID: "b", ClientID: "client-1", Status: StatusPending, AmountMinor: 2550},
		{ID: "c", ClientID: "client-1", Status: StatusBroken, AmountMinor: 99999},
		{ID: "d", ClientID: "client-2", Status: StatusPending, AmountMinor: 777},
	}
	for _, p := range seeds {
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	sum, err := svc.PendingSummary(ctx, "client-1")
	if err != nil {
		t.Fatalf("PendingSummary: %v", err)
	}
	if sum.Count != 2 || sum.AmountMinor != 12550 {
		t.Fatalf("summary = %+v", sum)
	}
}
