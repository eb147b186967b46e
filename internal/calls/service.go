package calls

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"collections-platform/internal/debtors"
	"collections-platform/internal/voiceagent"
)

// CompletionWatcher is started once per dispatched call and drives the record
// to a terminal status in the background.
type CompletionWatcher interface {
	Watch(ctx context.Context, conversationID, callID string)
}

// Service triggers outbound calls and owns call-record state transitions.
type Service struct {
	repo    Repository
	debtors debtors.Repository
	dialer  voiceagent.Dialer
	watcher CompletionWatcher

	fromNumber  string
	companyName string

	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, debtorRepo debtors.Repository, dialer voiceagent.Dialer, watcher CompletionWatcher, fromNumber, companyName string, log *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		debtors:     debtorRepo,
		dialer:      dialer,
		watcher:     watcher,
		fromNumber:  fromNumber,
		companyName: companyName,
		log:         log,
		clock:       time.Now,
	}
}

// SetWatcher installs the completion watcher. The watcher finalizes calls
// through this service, so the two are constructed before being bound.
func (s *Service) SetWatcher(w CompletionWatcher) {
	s.watcher = w
}

type TriggerRequest struct {
	DebtorID   string `json:"debtor_id"`
	CampaignID string `json:"campaign_id,omitempty"`
}

// TriggerCall places one outbound call to a debtor and starts the completion
// watcher. The watcher runs detached; this method returns as soon as the
// provider has accepted the call.
//
// Opted-out debtors are refused with ErrDebtorOptedOut.
func (s *Service) TriggerCall(ctx context.Context, clientID string, req TriggerRequest) (Call, error) {
	if req.DebtorID == "" {
		return Call{}, ErrInvalidArgument
	}
	d, err := s.debtors.Get(ctx, clientID, req.DebtorID)
	if err != nil {
		return Call{}, fmt.Errorf("load debtor: %w", err)
	}
	if d.OptedOut {
		return Call{}, ErrDebtorOptedOut
	}

	now := s.clock().UTC()
	call := Call{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		DebtorID:    d.ID,
		CampaignID:  req.CampaignID,
		Status:      CallStatusInitiated,
		FromNumber:  s.fromNumber,
		ToNumber:    d.Phone,
		InitiatedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, call); err != nil {
		return Call{}, fmt.Errorf("create call record: %w", err)
	}

	res, err := s.dialer.StartOutboundCall(ctx, voiceagent.OutboundCallRequest{
		ToNumber:         d.Phone,
		DynamicVariables: s.DynamicVariables(d),
	})
	if err != nil {
		if ferr := s.repo.Fail(ctx, call.ID, s.clock().UTC()); ferr != nil {
			s.log.Error("mark call failed after dial error", "call_id", call.ID, "error", ferr)
		}
		return Call{}, fmt.Errorf("start outbound call: %w", err)
	}

	if err := s.repo.MarkDispatched(ctx, call.ID, res.ConversationID, res.CallSID, s.clock().UTC()); err != nil {
		return Call{}, fmt.Errorf("mark dispatched: %w", err)
	}
	call.Status = CallStatusRinging
	call.ConversationID = res.ConversationID
	call.ProviderCallSID = res.CallSID

	s.log.Info("call dispatched",
		"call_id", call.ID,
		"debtor_id", d.ID,
		"conversation_id", res.ConversationID,
	)

	// Detach the watcher from the request context so an HTTP timeout does
	// not abandon the record mid-flight.
	s.watcher.Watch(context.WithoutCancel(ctx), res.ConversationID, call.ID)

	return call, nil
}

// DynamicVariables builds the script substitutions handed to the voice agent
// for one debtor.
func (s *Service) DynamicVariables(d debtors.Debtor) map[string]string {
	return DynamicVariables(d, s.companyName)
}

func DynamicVariables(d debtors.Debtor, companyName string) map[string]string {
	vars := map[string]string{
		"debtor_name":  d.FullName(),
		"first_name":   d.FirstName,
		"amount_owed":  debtors.FormatAmountMinor(d.AmountOwedMinor),
		"company_name": companyName,
	}
	if d.DueDate != nil {
		vars["due_date"] = debtors.FormatDueDate(d.DueDate)
	}
	if d.AccountLast4 != "" {
		vars["account_last4"] = d.AccountLast4
	}
	if d.Stage != "" {
		vars["delinquency_stage"] = string(d.Stage)
	}
	return vars
}

func (s *Service) Get(ctx context.Context, clientID, callID string) (Call, error) {
	if clientID == "" || callID == "" {
		return Call{}, ErrInvalidArgument
	}
	return s.repo.Get(ctx, clientID, callID)
}

// GetByID loads a call without client scoping. For background workers only;
// API handlers go through Get.
func (s *Service) GetByID(ctx context.Context, callID string) (Call, error) {
	if callID == "" {
		return Call{}, ErrInvalidArgument
	}
	return s.repo.GetByID(ctx, callID)
}

func (s *Service) List(ctx context.Context, clientID string, f ListFilter) ([]Call, int, error) {
	if clientID == "" {
		return nil, 0, ErrInvalidArgument
	}
	return s.repo.List(ctx, clientID, f.withDefaults())
}

// CompleteCall writes the terminal-success fields resolved for a call.
// EndedAt is set only when the provider reported a duration.
func (s *Service) CompleteCall(ctx context.Context, callID string, res CallCompletion) error {
	now := s.clock().UTC()
	var endedAt *time.Time
	if res.DurationSeconds > 0 {
		endedAt = &now
	}
	return s.repo.Complete(ctx, callID, res, endedAt, now)
}

// FailCall marks a call failed on an explicit terminal-failure signal.
func (s *Service) FailCall(ctx context.Context, callID string) error {
	return s.repo.Fail(ctx, callID, s.clock().UTC())
}

// FailCallIfUnresolved marks a call failed only if it has not already reached
// a terminal status. It reports whether a transition happened.
func (s *Service) FailCallIfUnresolved(ctx context.Context, callID string) (bool, error) {
	return s.repo.FailIfUnresolved(ctx, callID, s.clock().UTC())
}

// AttachExtraction persists a validated extraction on the call record.
// Callers must only pass values produced by ExtractionValidator.Validate;
// a rejected extraction never reaches this method.
func (s *Service) AttachExtraction(ctx context.Context, callID string, ext CallExtraction) error {
	if !validOutcome(ext.Outcome) || !validConversationState(ext.FinalState) {
		return ErrInvalidArgument
	}
	raw, err := json.Marshal(ext)
	if err != nil {
		return fmt.Errorf("encode extraction: %w", err)
	}
	return s.repo.AttachExtraction(ctx, callID, ext.Outcome, ext.FinalState, string(raw), s.clock().UTC())
}
