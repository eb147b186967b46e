// Package audit keeps an append-only trail of compliance-relevant actions.
// Debt collection is regulated; opt-outs, call attempts, and discarded
// extractions must all be reconstructable after the fact.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventCallTriggered       EventType = "call_triggered"
	EventExtractionRejected  EventType = "extraction_rejected"
	EventDebtorOptedOut      EventType = "debtor_opted_out"
	EventSMSSent             EventType = "sms_sent"
	EventCampaignStarted     EventType = "campaign_started"
	EventPromiseStatusChange EventType = "promise_status_changed"
)

type Event struct {
	ID       string    `json:"id" db:"id"`
	ClientID string    `json:"client_id" db:"client_id"`
	Type     EventType `json:"type" db:"type"`

	// ActorID is the user who caused the event; empty for system actions.
	ActorID string `json:"actor_id,omitempty" db:"actor_id"`

	// SubjectID identifies the affected entity (call, debtor, campaign).
	SubjectID string `json:"subject_id,omitempty" db:"subject_id"`

	Detail string `json:"detail,omitempty" db:"detail"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Repository interface {
	Append(ctx context.Context, e Event) error
	List(ctx context.Context, clientID string, limit int) ([]Event, error)
}

// Service records events best-effort: an audit write failure is logged but
// never fails the action being audited.
type Service struct {
	repo  Repository
	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log, clock: time.Now}
}

func (s *Service) Record(ctx context.Context, clientID string, typ EventType, actorID, subjectID, detail string) {
	e := Event{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Type:      typ,
		ActorID:   actorID,
		SubjectID: subjectID,
		Detail:    detail,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.repo.Append(ctx, e); err != nil {
		s.log.Error("audit append failed", "type", typ, "subject_id", subjectID, "error", err)
	}
}

// RecordExtractionRejected satisfies the extraction pipeline's recorder.
func (s *Service) RecordExtractionRejected(ctx context.Context, clientID, callID, reason string) {
	s.Record(ctx, clientID, EventExtractionRejected, "", callID, reason)
}

func (s *Service) Recent(ctx context.Context, clientID string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.List(ctx, clientID, limit)
}
