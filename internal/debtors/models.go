package debtors

import (
	"strings"
	"time"
)

// Debtor is a person who owes money to a client company.
//
// Multi-tenant invariant: ClientID is required on every row.
// Opt-out invariant: once OptedOut is set, no outbound call or SMS may be
// initiated for this debtor; enforcement lives in the calling services.
type Debtor struct {
	ID       string `json:"id" db:"id"`
	ClientID string `json:"client_id" db:"client_id"`

	// ExternalID is the client's own account reference, if any.
	ExternalID string `json:"external_id,omitempty" db:"external_id"`

	FirstName string `json:"first_name,omitempty" db:"first_name"`
	LastName  string `json:"last_name,omitempty" db:"last_name"`

	// Phone is E.164.
	Phone string `json:"phone" db:"phone"`
	Email string `json:"email,omitempty" db:"email"`

	Timezone string `json:"timezone,omitempty" db:"timezone"`

	// AmountOwedMinor is the outstanding balance in minor units (cents).
	AmountOwedMinor int64  `json:"amount_owed_minor" db:"amount_owed_minor"`
	Currency        string `json:"currency" db:"currency"`

	DueDate *time.Time `json:"due_date,omitempty" db:"due_date"`

	Stage DelinquencyStage `json:"stage" db:"stage"`

	// AccountLast4 is read out by the agent for identity verification.
	AccountLast4 string `json:"account_last4,omitempty" db:"account_last4"`

	OptedOut   bool       `json:"opted_out" db:"opted_out"`
	OptedOutAt *time.Time `json:"opted_out_at,omitempty" db:"opted_out_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FullName joins the name parts, falling back to "Unknown".
func (d Debtor) FullName() string {
	parts := make([]string, 0, 2)
	if d.FirstName != "" {
		parts = append(parts, d.FirstName)
	}
	if d.LastName != "" {
		parts = append(parts, d.LastName)
	}
	if len(parts) == 0 {
		return "Unknown"
	}
	return strings.Join(parts, " ")
}

// DelinquencyStage classifies how overdue a debt is; it selects which script
// variant the hosted agent runs.
type DelinquencyStage string

const (
	StagePreDelinquency   DelinquencyStage = "pre_delinquency"
	StageEarlyDelinquency DelinquencyStage = "early_delinquency"
	StageLateDelinquency  DelinquencyStage = "late_delinquency"
)

func ValidStage(s DelinquencyStage) bool {
	switch s {
	case StagePreDelinquency, StageEarlyDelinquency, StageLateDelinquency:
		return true
	default:
		return false
	}
}
