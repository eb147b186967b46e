package reporting

import (
	"context"
	"testing"
	"time"

	"collections-platform/internal/audit"
	"collections-platform/internal/calls"
	"collections-platform/internal/promises"
)

type fakeRepo struct {
	sinces []time.Time
}

func (r *fakeRepo) DebtorTotals(_ context.Context, _ string) (DebtorTotals, error) {
	return DebtorTotals{Count: 120, OptedOut: 3, AmountOwedMinor: 45_000_00}, nil
}

func (r *fakeRepo) CallCounts(_ context.Context, _ string, since time.Time) (CallCounts, error) {
	r.sinces = append(r.sinces, since)
	return CallCounts{Total: 10, Completed: 7, Failed: 3}, nil
}

func (r *fakeRepo) OutcomeCounts(_ context.Context, _ string) (map[calls.CallOutcome]int, error) {
	return map[calls.CallOutcome]int{
		calls.OutcomePromisedToPay: 4,
		calls.OutcomeHungUp:        2,
	}, nil
}

type fakeSummarizer struct{}

func (fakeSummarizer) PendingSummary(_ context.Context, _ string) (promises.PendingSummary, error) {
	return promises.PendingSummary{Count: 5, AmountMinor: 1250_00}, nil
}

type fakeActivity struct{}

func (fakeActivity) Recent(_ context.Context, _ string, _ int) ([]audit.Event, error) {
	return []audit.Event{{Type: audit.EventCallTriggered, SubjectID: "call-1"}}, nil
}

func TestDashboard(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, fakeSummarizer{}, fakeActivity{})
	// A Wednesday.
	svc.clock = func() time.Time { return time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC) }

	d, err := svc.Dashboard(context.Background(), "client-1")
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}

	if d.Debtors.Count != 120 || d.Debtors.AmountOwedMinor != 45_000_00 {
		t.Fatalf("debtors = %+v", d.Debtors)
	}
	if d.Outcomes[calls.OutcomePromisedToPay] != 4 {
		t.Fatalf("outcomes = %v", d.Outcomes)
	}
	if d.PendingPromises.Count != 5 {
		t.Fatalf("pending promises = %+v", d.PendingPromises)
	}
	if len(d.RecentActivity) != 1 {
		t.Fatalf("activity = %v", d.RecentActivity)
	}

	if len(repo.sinces) != 2 {
		t.Fatalf("call count queries = %d, want 2", len(repo.sinces))
	}
	wantToday := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	wantWeek := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) // Sunday
	if !repo.sinces[0].Equal(wantToday) {
		t.Fatalf("today cutoff = %v, want %v", repo.sinces[0], wantToday)
	}
	if !repo.sinces[1].Equal(wantWeek) {
		t.Fatalf("week cutoff = %v, want %v", repo.sinces[1], wantWeek)
	}
}

func TestDashboardRequiresClient(t *testing.T) {
	svc := NewService(&fakeRepo{}, fakeSummarizer{}, fakeActivity{})
	if _, err := svc.Dashboard(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty client id")
	}
}
