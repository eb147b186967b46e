package campaigns

import "time"

// Campaign is a named batch of outbound calls against a set of debtors.
type Campaign struct {
	ID       string `json:"id" db:"id"`
	ClientID string `json:"client_id" db:"client_id"`
	Name     string `json:"name" db:"name"`

	Status CampaignStatus `json:"status" db:"status"`

	DebtorIDs []string `json:"debtor_ids" db:"debtor_ids"`

	// ProviderBatchID is the batch-calling job id once the campaign has
	// been handed to the voice-agent provider.
	ProviderBatchID string `json:"provider_batch_id,omitempty" db:"provider_batch_id"`

	// SkippedDebtors counts recipients excluded at start time (opted out
	// or missing).
	SkippedDebtors int `json:"skipped_debtors" db:"skipped_debtors"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty" db:"started_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

type CampaignStatus string

const (
	StatusDraft     CampaignStatus = "draft"
	StatusActive    CampaignStatus = "active"
	StatusPaused    CampaignStatus = "paused"
	StatusCompleted CampaignStatus = "completed"
)
