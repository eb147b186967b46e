package promises

import "time"

// Promise is a persisted payment commitment captured from a validated call
// extraction. Amounts are stored in minor units.
type Promise struct {
	ID       string `json:"id" db:"id"`
	ClientID string `json:"client_id" db:"client_id"`
	DebtorID string `json:"debtor_id" db:"debtor_id"`
	CallID   string `json:"call_id" db:"call_id"`

	AmountMinor int64  `json:"amount_minor" db:"amount_minor"`
	Currency    string `json:"currency" db:"currency"`

	// PromiseDate is a calendar date; the time component is always
	// midnight UTC.
	PromiseDate time.Time `json:"promise_date" db:"promise_date"`

	Status PromiseStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type PromiseStatus string

const (
	StatusPending   PromiseStatus = "pending"
	StatusFulfilled PromiseStatus = "fulfilled"
	StatusPartial   PromiseStatus = "partial"
	StatusBroken    PromiseStatus = "broken"
	StatusOverdue   PromiseStatus = "overdue"
)

func ValidStatus(s PromiseStatus) bool {
	switch s {
	case StatusPending, StatusFulfilled, StatusPartial, StatusBroken, StatusOverdue:
		return true
	default:
		return false
	}
}
