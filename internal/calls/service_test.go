package calls

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"collections-platform/internal/debtors"
	"collections-platform/internal/voiceagent"
)

type fakeDialer struct {
	calls []voiceagent.OutboundCallRequest
	err   error
}

func (d *fakeDialer) StartOutboundCall(_ context.Context, req voiceagent.OutboundCallRequest) (voiceagent.OutboundCallResult, error) {
	d.calls = append(d.calls, req)
	if d.err != nil {
		return voiceagent.OutboundCallResult{}, d.err
	}
	return voiceagent.OutboundCallResult{ConversationID: "conv-1", CallSID: "CA123"}, nil
}

type fakeWatcher struct {
	watched []string
}

func (w *fakeWatcher) Watch(_ context.Context, conversationID, callID string) {
	w.watched = append(w.watched, conversationID+"/"+callID)
}

func newTestCallService(t *testing.T) (*Service, *MemoryRepo, *debtors.MemoryRepo, *fakeDialer, *fakeWatcher) {
	t.Helper()
	repo := NewMemoryRepo()
	debtorRepo := debtors.NewMemoryRepo()
	dialer := &fakeDialer{}
	watcher := &fakeWatcher{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, debtorRepo, dialer, watcher, "+15550000000", "Northwind Recovery", log)
	svc.clock = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return svc, repo, debtorRepo, dialer, watcher
}

func seedDebtor(t *testing.T, repo *debtors.MemoryRepo, optedOut bool) debtors.Debtor {
	t.Helper()
	due := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	d := debtors.Debtor{
		ID:              "debtor-1",
		ClientID:        "client-1",
		FirstName:       "Ana",
		LastName:        "Reyes",
		Phone:           "+15550001111",
		AmountOwedMinor: 123456,
		Currency:        "USD",
		DueDate:         &due,
		Stage:           debtors.StageEarlyDelinquency,
		AccountLast4:    "4321",
		OptedOut:        optedOut,
	}
	if err := repo.Create(context.Background(), d); err != nil {
		t.Fatalf("seed debtor: %v", err)
	}
	return d
}

func TestTriggerCallDispatchesAndWatches(t *testing.T) {
	svc, repo, debtorRepo, dialer, watcher := newTestCallService(t)
	seedDebtor(t, debtorRepo, false)

	call, err := svc.TriggerCall(context.Background(), "client-1", TriggerRequest{DebtorID: "debtor-1"})
	if err != nil {
		t.Fatalf("TriggerCall: %v", err)
	}
	if call.ConversationID != "conv-1" || call.ProviderCallSID != "CA123" {
		t.Fatalf("provider ids not recorded: %+v", call)
	}
	if call.Status != CallStatusRinging {
		t.Fatalf("status = %q, want ringing after dispatch", call.Status)
	}

	if len(dialer.calls) != 1 {
		t.Fatalf("dialer called %d times, want 1", len(dialer.calls))
	}
	vars := dialer.calls[0].DynamicVariables
	if vars["debtor_name"] != "Ana Reyes" {
		t.Fatalf("debtor_name = %q", vars["debtor_name"])
	}
	if vars["amount_owed"] != "1,234.56" {
		t.Fatalf("amount_owed = %q", vars["amount_owed"])
	}
	if vars["due_date"] != "March 15, 2026" {
		t.Fatalf("due_date = %q", vars["due_date"])
	}
	if vars["company_name"] != "Northwind Recovery" {
		t.Fatalf("company_name = %q", vars["company_name"])
	}

	if len(watcher.watched) != 1 || watcher.watched[0] != "conv-1/"+call.ID {
		t.Fatalf("watcher = %v", watcher.watched)
	}

	stored, err := repo.Get(context.Background(), "client-1", call.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.ConversationID != "conv-1" {
		t.Fatalf("stored conversation id = %q", stored.ConversationID)
	}
}

func TestTriggerCallRefusesOptedOutDebtor(t *testing.T) {
	svc, _, debtorRepo, dialer, watcher := newTestCallService(t)
	seedDebtor(t, debtorRepo, true)

	_, err := svc.TriggerCall(context.Background(), "client-1", TriggerRequest{DebtorID: "debtor-1"})
	if !errors.Is(err, ErrDebtorOptedOut) {
		t.Fatalf("err = %v, want ErrDebtorOptedOut", err)
	}
	if len(dialer.calls) != 0 {
		t.Fatal("dialer must not be called for an opted-out debtor")
	}
	if len(watcher.watched) != 0 {
		t.Fatal("watcher must not start for a refused call")
	}
}

func TestTriggerCallMarksFailedOnDialError(t *testing.T) {
	svc, repo, debtorRepo, dialer, watcher := newTestCallService(t)
	seedDebtor(t, debtorRepo, false)
	dialer.err = errors.New("provider down")

	_, err := svc.TriggerCall(context.Background(), "client-1", TriggerRequest{DebtorID: "debtor-1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(watcher.watched) != 0 {
		t.Fatal("watcher must not start after dial failure")
	}

	list, total, err := repo.List(context.Background(), "client-1", ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || list[0].Status != CallStatusFailed {
		t.Fatalf("expected one failed record, got total=%d status=%v", total, list)
	}
}

func TestCompleteCallSetsEndedAtOnlyWithDuration(t *testing.T) {
	svc, repo, _, _, _ := newTestCallService(t)
	ctx := context.Background()

	for _, c := range []Call{
		{ID: "call-a", ClientID: "client-1", Status: CallStatusInProgress},
		{ID: "call-b", ClientID: "client-1", Status: CallStatusInProgress},
	} {
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	if err := svc.CompleteCall(ctx, "call-a", CallCompletion{DurationSeconds: 42, Transcript: "Agent: Hello"}); err != nil {
		t.Fatalf("CompleteCall: %v", err)
	}
	a, _ := repo.GetByID(ctx, "call-a")
	if a.Status != CallStatusCompleted || a.EndedAt == nil || a.DurationSeconds != 42 {
		t.Fatalf("call-a = %+v", a)
	}

	if err := svc.CompleteCall(ctx, "call-b", CallCompletion{}); err != nil {
		t.Fatalf("CompleteCall: %v", err)
	}
	b, _ := repo.GetByID(ctx, "call-b")
	if b.Status != CallStatusCompleted || b.EndedAt != nil {
		t.Fatalf("call-b without duration must not get ended_at: %+v", b)
	}
}

func TestFailCallIfUnresolvedIsIdempotent(t *testing.T) {
	svc, repo, _, _, _ := newTestCallService(t)
	ctx := context.Background()

	if err := repo.Create(ctx, Call{ID: "call-a", ClientID: "client-1", Status: CallStatusInProgress}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, Call{ID: "call-b", ClientID: "client-1", Status: CallStatusCompleted}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	changed, err := svc.FailCallIfUnresolved(ctx, "call-a")
	if err != nil || !changed {
		t.Fatalf("first finalize: changed=%v err=%v", changed, err)
	}
	changed, err = svc.FailCallIfUnresolved(ctx, "call-a")
	if err != nil || changed {
		t.Fatalf("repeat finalize must be a no-op: changed=%v err=%v", changed, err)
	}

	changed, err = svc.FailCallIfUnresolved(ctx, "call-b")
	if err != nil || changed {
		t.Fatalf("completed record must not be demoted: changed=%v err=%v", changed, err)
	}
	b, _ := repo.GetByID(ctx, "call-b")
	if b.Status != CallStatusCompleted {
		t.Fatalf("call-b status = %q", b.Status)
	}
}

func TestAttachExtractionStoresOutcomeAndState(t *testing.T) {
	svc, repo, _, _, _ := newTestCallService(t)
	ctx := context.Background()

	if err := repo.Create(ctx, Call{ID: "call-a", ClientID: "client-1", Status: CallStatusCompleted}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ext := CallExtraction{
		ConfirmedIdentity:  true,
		SpeakingWithDebtor: true,
		Outcome:            OutcomePromisedToPay,
		PromiseMade:        true,
		Promise: &PaymentPromise{
			Amount:      250.00,
			PromiseDate: Date{time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
		},
		DebtorSentiment: 4,
		CallSummary:     "Debtor confirmed identity and promised payment.",
		FinalState:      StateCommitment,
	}
	if err := svc.AttachExtraction(ctx, "call-a", ext); err != nil {
		t.Fatalf("AttachExtraction: %v", err)
	}

	c, _ := repo.GetByID(ctx, "call-a")
	if c.Outcome != OutcomePromisedToPay || c.FinalState != StateCommitment {
		t.Fatalf("outcome/state = %q/%q", c.Outcome, c.FinalState)
	}
	if c.Extraction == "" {
		t.Fatal("extraction json not stored")
	}

	bad := ext
	bad.Outcome = "paid_in_full"
	if err := svc.AttachExtraction(ctx, "call-a", bad); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("invalid outcome err = %v, want ErrInvalidArgument", err)
	}
}
