package calls

import "time"

// Call is one outbound collection call to a debtor.
//
// Multi-tenant invariant: ClientID is required on every row.
//
// Terminal-outcome fields (DurationSeconds, EndedAt, Transcript,
// TranscriptJSON, AISummary) stay empty until the completion poller resolves
// the conversation; Extraction is attached later, and only after validation.
type Call struct {
	ID       string `json:"id" db:"id"`
	ClientID string `json:"client_id" db:"client_id"`
	DebtorID string `json:"debtor_id" db:"debtor_id"`

	CampaignID string `json:"campaign_id,omitempty" db:"campaign_id"`

	// ConversationID is the voice-agent provider's opaque conversation id.
	ConversationID string `json:"conversation_id,omitempty" db:"conversation_id"`
	// ProviderCallSID is the telephony-leg identifier (Twilio CallSid).
	ProviderCallSID string `json:"provider_call_sid,omitempty" db:"provider_call_sid"`

	Status     CallStatus        `json:"status" db:"status"`
	Outcome    CallOutcome       `json:"outcome,omitempty" db:"outcome"`
	FinalState ConversationState `json:"final_state,omitempty" db:"final_state"`

	FromNumber string `json:"from_number,omitempty" db:"from_number"`
	ToNumber   string `json:"to_number,omitempty" db:"to_number"`

	InitiatedAt time.Time  `json:"initiated_at" db:"initiated_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	// Transcript is the human-readable rendering ("Agent: …\nUser: …").
	// TranscriptJSON is the provider's raw turn list, stored as JSON.
	Transcript     string `json:"transcript,omitempty" db:"transcript"`
	TranscriptJSON string `json:"transcript_json,omitempty" db:"transcript_json"`

	AISummary string `json:"ai_summary,omitempty" db:"ai_summary"`

	// Extraction is the validated CallExtraction serialized as JSON.
	// A rejected extraction is never stored here.
	Extraction string `json:"extraction,omitempty" db:"extraction"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	CallStatusInitiated  CallStatus = "initiated"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
)

// IsTerminal reports whether no further status transition is expected.
func (s CallStatus) IsTerminal() bool {
	return s == CallStatusCompleted || s == CallStatusFailed
}

// CallOutcome is the business result of a completed call, as extracted
// from the transcript.
type CallOutcome string

const (
	OutcomePromisedToPay     CallOutcome = "promised_to_pay"
	OutcomePartialPromise    CallOutcome = "partial_promise"
	OutcomeDisputed          CallOutcome = "disputed"
	OutcomeHardship          CallOutcome = "hardship"
	OutcomeWrongNumber       CallOutcome = "wrong_number"
	OutcomeCallbackRequested CallOutcome = "callback_requested"
	OutcomeHungUp            CallOutcome = "hung_up"
	OutcomeNoAnswer          CallOutcome = "no_answer"
	OutcomeVoicemailLeft     CallOutcome = "voicemail_left"
	OutcomeOther             CallOutcome = "other"
)

func validOutcome(v CallOutcome) bool {
	switch v {
	case OutcomePromisedToPay, OutcomePartialPromise, OutcomeDisputed,
		OutcomeHardship, OutcomeWrongNumber, OutcomeCallbackRequested,
		OutcomeHungUp, OutcomeNoAnswer, OutcomeVoicemailLeft, OutcomeOther:
		return true
	default:
		return false
	}
}

// ConversationState names the script state the agent-side conversation ended
// in. The state machine itself runs on the hosted agent; these values are
// only reported back through extraction.
type ConversationState string

const (
	StateGreeting          ConversationState = "greeting"
	StateVerification      ConversationState = "verification"
	StatePurpose           ConversationState = "purpose"
	StateNegotiation       ConversationState = "negotiation"
	StateObjectionHandling ConversationState = "objection_handling"
	StateCommitment        ConversationState = "commitment"
	StateClosing           ConversationState = "closing"
	StateWrongNumber       ConversationState = "wrong_number"
	StateHardship          ConversationState = "hardship"
	StateCallback          ConversationState = "callback"
)

func validConversationState(v ConversationState) bool {
	switch v {
	case StateGreeting, StateVerification, StatePurpose, StateNegotiation,
		StateObjectionHandling, StateCommitment, StateClosing,
		StateWrongNumber, StateHardship, StateCallback:
		return true
	default:
		return false
	}
}
