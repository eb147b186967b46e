package calls

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("calls: not found")
	ErrInvalidArgument = errors.New("calls: invalid argument")
	ErrDebtorOptedOut  = errors.New("calls: debtor has opted out of calls")
)

type ListFilter struct {
	Status     CallStatus
	Outcome    CallOutcome
	DebtorID   string
	CampaignID string

	Limit  int
	Offset int
}

func (f ListFilter) withDefaults() ListFilter {
	out := f
	if out.Limit <= 0 || out.Limit > 100 {
		out.Limit = 20
	}
	if out.Offset < 0 {
		out.Offset = 0
	}
	return out
}

// CallCompletion carries the terminal-success fields resolved by the
// completion poller.
type CallCompletion struct {
	DurationSeconds int
	Transcript      string
	TranscriptJSON  string
	AISummary       string
}

// Repository persists call records. GetByID and the finalization methods are
// unscoped by client because the poller identifies calls by id alone; all
// caller-facing reads go through the client-scoped methods.
type Repository interface {
	Create(ctx context.Context, c Call) error
	Get(ctx context.Context, clientID, callID string) (Call, error)
	GetByID(ctx context.Context, callID string) (Call, error)
	List(ctx context.Context, clientID string, f ListFilter) ([]Call, int, error)

	// MarkDispatched records the provider identifiers once the outbound
	// call has been accepted.
	MarkDispatched(ctx context.Context, callID, conversationID, providerSID string, now time.Time) error

	// Complete writes terminal-success fields and sets status completed.
	Complete(ctx context.Context, callID string, res CallCompletion, endedAt *time.Time, now time.Time) error

	// Fail sets status failed unconditionally.
	Fail(ctx context.Context, callID string, now time.Time) error

	// FailIfUnresolved sets status failed only when the record is still
	// non-terminal, and reports whether a transition happened.
	FailIfUnresolved(ctx context.Context, callID string, now time.Time) (bool, error)

	// AttachExtraction stores a validated extraction and its derived
	// outcome and final state.
	AttachExtraction(ctx context.Context, callID string, outcome CallOutcome, finalState ConversationState, extraction string, now time.Time) error
}
