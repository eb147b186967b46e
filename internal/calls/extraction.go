package calls

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// CallExtraction is the structured summary of a finished call, produced by an
// LLM from the transcript and accepted only after full validation.
//
// Invariants (enforced by ExtractionValidator, all-or-nothing):
// - outcome and final_state come from closed enumerations
// - debtor_sentiment is in [1,5]
// - call_summary length is in [10,500]; reason fields are capped
// - promise_made == true exactly when promise is non-nil
// - a promise has amount > 0 and a promise_date not before today
type CallExtraction struct {
	ConfirmedIdentity  bool `json:"confirmed_identity"`
	SpeakingWithDebtor bool `json:"speaking_with_debtor"`
	WrongNumber        bool `json:"wrong_number"`

	Outcome CallOutcome `json:"outcome"`

	PromiseMade bool            `json:"promise_made"`
	Promise     *PaymentPromise `json:"promise,omitempty"`

	HardshipReason string `json:"hardship_reason,omitempty"`
	DisputeReason  string `json:"dispute_reason,omitempty"`

	CallbackRequested     bool   `json:"callback_requested"`
	PreferredCallbackTime string `json:"preferred_callback_time,omitempty"`

	RequestedNoCalls bool `json:"requested_no_calls"`

	// DebtorSentiment: 1=hostile, 3=neutral, 5=cooperative.
	DebtorSentiment int `json:"debtor_sentiment"`

	CallSummary string `json:"call_summary"`

	FinalState ConversationState `json:"final_state"`
}

// PaymentPromise is a debtor's stated commitment to pay a specific amount by
// a specific date. It is a value object; the persisted row lives in
// internal/promises.
type PaymentPromise struct {
	Amount      float64 `json:"amount"`
	PromiseDate Date    `json:"promise_date"`
}

// Date is a calendar date serialized as "2006-01-02".
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Violation describes one failed validation rule.
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError carries every violation found in one pass. Callers decide
// whether to re-request the extraction or flag the call for manual review.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "extraction invalid"
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return "extraction invalid: " + strings.Join(parts, "; ")
}

// ExtractionValidator turns untrusted LLM output into a CallExtraction or a
// ValidationError. It is a pure function over its input and clock; safe for
// concurrent use.
//
// Validation order is fixed and observable in the violation list:
//  1. per-field type/enum/range/length conformance
//  2. promise_made <-> promise presence (strict biconditional)
//  3. nested promise invariants (amount > 0, date not before today)
//
// "Today" is taken from the validator's clock at validation time, not from
// the call's own timestamps. Callers that need call-time semantics inject a
// clock pinned to the call.
type ExtractionValidator struct {
	clock func() time.Time
}

func NewExtractionValidator() *ExtractionValidator {
	return &ExtractionValidator{clock: time.Now}
}

// WithClock returns a validator using the given clock. Intended for tests and
// for re-validating historical calls against their own date.
func (v *ExtractionValidator) WithClock(clock func() time.Time) *ExtractionValidator {
	return &ExtractionValidator{clock: clock}
}

const (
	maxReasonLen       = 500
	maxCallbackTimeLen = 100
	minSummaryLen      = 10
	maxSummaryLen      = 500
)

// Validate parses and validates raw JSON. There is no partial acceptance: any
// violation rejects the whole object.
func (v *ExtractionValidator) Validate(raw []byte) (CallExtraction, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return CallExtraction{}, &ValidationError{Violations: []Violation{{
			Field:   "$",
			Rule:    "type",
			Message: "input is not a JSON object",
		}}}
	}

	var out CallExtraction
	var viols []Violation

	// Phase 1: per-field conformance, in declaration order.
	out.ConfirmedIdentity = requireBool(fields, "confirmed_identity", &viols)
	out.SpeakingWithDebtor = requireBool(fields, "speaking_with_debtor", &viols)
	out.WrongNumber = optionalBool(fields, "wrong_number", &viols)

	if s, ok := requireString(fields, "outcome", &viols); ok {
		if validOutcome(CallOutcome(s)) {
			out.Outcome = CallOutcome(s)
		} else {
			viols = append(viols, Violation{Field: "outcome", Rule: "enum", Message: fmt.Sprintf("unknown outcome %q", s)})
		}
	}

	promiseMadeKnown := true
	if _, present := fields["promise_made"]; present {
		var b bool
		if err := json.Unmarshal(fields["promise_made"], &b); err != nil {
			viols = append(viols, Violation{Field: "promise_made", Rule: "type", Message: "must be a boolean"})
			promiseMadeKnown = false
		} else {
			out.PromiseMade = b
		}
	}

	promise, promiseOK := decodePromise(fields, &viols)
	out.Promise = promise

	out.HardshipReason = optionalCappedString(fields, "hardship_reason", maxReasonLen, &viols)
	out.DisputeReason = optionalCappedString(fields, "dispute_reason", maxReasonLen, &viols)
	out.CallbackRequested = optionalBool(fields, "callback_requested", &viols)
	out.PreferredCallbackTime = optionalCappedString(fields, "preferred_callback_time", maxCallbackTimeLen, &viols)
	out.RequestedNoCalls = optionalBool(fields, "requested_no_calls", &viols)

	if n, ok := requireInt(fields, "debtor_sentiment", &viols); ok {
		if n < 1 || n > 5 {
			viols = append(viols, Violation{Field: "debtor_sentiment", Rule: "range", Message: fmt.Sprintf("must be in [1,5], got %d", n)})
		} else {
			out.DebtorSentiment = n
		}
	}

	if s, ok := requireString(fields, "call_summary", &viols); ok {
		// Lengths count characters, not bytes, so multibyte text is not
		// penalized.
		if n := utf8.RuneCountInString(s); n < minSummaryLen || n > maxSummaryLen {
			viols = append(viols, Violation{Field: "call_summary", Rule: "length", Message: fmt.Sprintf("length must be in [%d,%d], got %d", minSummaryLen, maxSummaryLen, n)})
		} else {
			out.CallSummary = s
		}
	}

	if s, ok := requireString(fields, "final_state", &viols); ok {
		if validConversationState(ConversationState(s)) {
			out.FinalState = ConversationState(s)
		} else {
			viols = append(viols, Violation{Field: "final_state", Rule: "enum", Message: fmt.Sprintf("unknown state %q", s)})
		}
	}

	// Phase 2: strict biconditional. Skipped only when promise_made itself
	// failed to parse; presence mismatches are never coerced.
	if promiseMadeKnown {
		if out.PromiseMade && out.Promise == nil {
			viols = append(viols, Violation{Field: "promise", Rule: "consistency", Message: "promise must be set when promise_made is true"})
		}
		if !out.PromiseMade && out.Promise != nil {
			viols = append(viols, Violation{Field: "promise", Rule: "consistency", Message: "promise must be null when promise_made is false"})
		}
	}

	// Phase 3: nested promise invariants, only when a promise decoded.
	if promiseOK && out.Promise != nil {
		if out.Promise.Amount <= 0 {
			viols = append(viols, Violation{Field: "promise.amount", Rule: "range", Message: "must be > 0"})
		}
		now := v.clock().UTC()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if out.Promise.PromiseDate.Before(today) {
			viols = append(viols, Violation{Field: "promise.promise_date", Rule: "range", Message: "cannot be in the past"})
		}
	}

	if len(viols) > 0 {
		return CallExtraction{}, &ValidationError{Violations: viols}
	}
	return out, nil
}

func requireBool(fields map[string]json.RawMessage, key string, viols *[]Violation) bool {
	raw, present := fields[key]
	if !present || string(raw) == "null" {
		*viols = append(*viols, Violation{Field: key, Rule: "required", Message: "field is required"})
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		*viols = append(*viols, Violation{Field: key, Rule: "type", Message: "must be a boolean"})
		return false
	}
	return b
}

func optionalBool(fields map[string]json.RawMessage, key string, viols *[]Violation) bool {
	raw, present := fields[key]
	if !present || string(raw) == "null" {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		*viols = append(*viols, Violation{Field: key, Rule: "type", Message: "must be a boolean"})
		return false
	}
	return b
}

func requireString(fields map[string]json.RawMessage, key string, viols *[]Violation) (string, bool) {
	raw, present := fields[key]
	if !present || string(raw) == "null" {
		*viols = append(*viols, Violation{Field: key, Rule: "required", Message: "field is required"})
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		*viols = append(*viols, Violation{Field: key, Rule: "type", Message: "must be a string"})
		return "", false
	}
	return s, true
}

func optionalCappedString(fields map[string]json.RawMessage, key string, max int, viols *[]Violation) string {
	raw, present := fields[key]
	if !present || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		*viols = append(*viols, Violation{Field: key, Rule: "type", Message: "must be a string"})
		return ""
	}
	if n := utf8.RuneCountInString(s); n > max {
		*viols = append(*viols, Violation{Field: key, Rule: "length", Message: fmt.Sprintf("length must be <= %d, got %d", max, n)})
		return ""
	}
	return s
}

func requireInt(fields map[string]json.RawMessage, key string, viols *[]Violation) (int, bool) {
	raw, present := fields[key]
	if !present || string(raw) == "null" {
		*viols = append(*viols, Violation{Field: key, Rule: "required", Message: "field is required"})
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		*viols = append(*viols, Violation{Field: key, Rule: "type", Message: "must be an integer"})
		return 0, false
	}
	i, err := n.Int64()
	if err != nil {
		*viols = append(*viols, Violation{Field: key, Rule: "type", Message: "must be an integer"})
		return 0, false
	}
	return int(i), true
}

func decodePromise(fields map[string]json.RawMessage, viols *[]Violation) (*PaymentPromise, bool) {
	raw, present := fields["promise"]
	if !present || string(raw) == "null" {
		return nil, true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		*viols = append(*viols, Violation{Field: "promise", Rule: "type", Message: "must be an object"})
		return nil, false
	}

	var p PaymentPromise
	ok := true

	if amtRaw, has := obj["amount"]; has && string(amtRaw) != "null" {
		var n json.Number
		if err := json.Unmarshal(amtRaw, &n); err != nil {
			*viols = append(*viols, Violation{Field: "promise.amount", Rule: "type", Message: "must be a number"})
			ok = false
		} else if f, err := n.Float64(); err != nil {
			*viols = append(*viols, Violation{Field: "promise.amount", Rule: "type", Message: "must be a number"})
			ok = false
		} else {
			p.Amount = f
		}
	} else {
		*viols = append(*viols, Violation{Field: "promise.amount", Rule: "required", Message: "field is required"})
		ok = false
	}

	if dateRaw, has := obj["promise_date"]; has && string(dateRaw) != "null" {
		var d Date
		if err := json.Unmarshal(dateRaw, &d); err != nil {
			*viols = append(*viols, Violation{Field: "promise.promise_date", Rule: "type", Message: "must be a date (YYYY-MM-DD)"})
			ok = false
		} else {
			p.PromiseDate = d
		}
	} else {
		*viols = append(*viols, Violation{Field: "promise.promise_date", Rule: "required", Message: "field is required"})
		ok = false
	}

	if !ok {
		// The object existed; keep a non-nil promise so the biconditional in
		// phase 2 reflects what the producer sent.
		return &p, false
	}
	return &p, true
}
