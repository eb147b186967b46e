package campaigns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"collections-platform/internal/calls"
	"collections-platform/internal/debtors"
	"collections-platform/internal/voiceagent"
)

var (
	ErrNotFound        = errors.New("campaigns: not found")
	ErrInvalidArgument = errors.New("campaigns: invalid argument")
	ErrNotStartable    = errors.New("campaigns: campaign is not in a startable state")
	ErrNoRecipients    = errors.New("campaigns: no eligible recipients")
)

type Repository interface {
	Create(ctx context.Context, c Campaign) error
	Get(ctx context.Context, clientID, campaignID string) (Campaign, error)
	Update(ctx context.Context, c Campaign) error
	List(ctx context.Context, clientID string) ([]Campaign, error)
}

// BatchSubmitter hands a recipient list to the voice-agent provider.
// Implemented by voiceagent.Client.
type BatchSubmitter interface {
	SubmitBatch(ctx context.Context, name string, recipients []voiceagent.BatchRecipient) (string, error)
}

type Service struct {
	repo    Repository
	debtors debtors.Repository
	batch   BatchSubmitter

	companyName string

	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, debtorRepo debtors.Repository, batch BatchSubmitter, companyName string, log *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		debtors:     debtorRepo,
		batch:       batch,
		companyName: companyName,
		log:         log,
		clock:       time.Now,
	}
}

type CreateRequest struct {
	Name      string   `json:"name"`
	DebtorIDs []string `json:"debtor_ids"`
}

func (s *Service) Create(ctx context.Context, clientID string, req CreateRequest) (Campaign, error) {
	if clientID == "" || req.Name == "" || len(req.DebtorIDs) == 0 {
		return Campaign{}, ErrInvalidArgument
	}

	now := s.clock().UTC()
	c := Campaign{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Name:      req.Name,
		Status:    StatusDraft,
		DebtorIDs: req.DebtorIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Campaign{}, err
	}
	return c, nil
}

// Start submits the campaign's eligible debtors as one provider batch.
// Opted-out and missing debtors are skipped, not errors; a campaign with no
// eligible recipients is refused.
func (s *Service) Start(ctx context.Context, clientID, campaignID string) (Campaign, error) {
	c, err := s.repo.Get(ctx, clientID, campaignID)
	if err != nil {
		return Campaign{}, err
	}
	if c.Status != StatusDraft && c.Status != StatusPaused {
		return Campaign{}, ErrNotStartable
	}

	recipients := make([]voiceagent.BatchRecipient, 0, len(c.DebtorIDs))
	skipped := 0
	for _, id := range c.DebtorIDs {
		d, err := s.debtors.Get(ctx, clientID, id)
		if err != nil {
			if errors.Is(err, debtors.ErrNotFound) {
				skipped++
				continue
			}
			return Campaign{}, fmt.Errorf("load debtor %s: %w", id, err)
		}
		if d.OptedOut {
			skipped++
			continue
		}
		recipients = append(recipients, voiceagent.BatchRecipient{
			ToNumber:         d.Phone,
			DynamicVariables: calls.DynamicVariables(d, s.companyName),
		})
	}
	if len(recipients) == 0 {
		return Campaign{}, ErrNoRecipients
	}

	batchID, err := s.batch.SubmitBatch(ctx, c.Name, recipients)
	if err != nil {
		return Campaign{}, fmt.Errorf("submit batch: %w", err)
	}

	now := s.clock().UTC()
	c.Status = StatusActive
	c.ProviderBatchID = batchID
	c.SkippedDebtors = skipped
	c.StartedAt = &now
	c.UpdatedAt = now
	if err := s.repo.Update(ctx, c); err != nil {
		return Campaign{}, err
	}

	s.log.Info("campaign started",
		"campaign_id", c.ID,
		"recipients", len(recipients),
		"skipped", skipped,
		"provider_batch_id", batchID,
	)
	return c, nil
}

func (s *Service) Get(ctx context.Context, clientID, campaignID string) (Campaign, error) {
	if clientID == "" || campaignID == "" {
		return Campaign{}, ErrInvalidArgument
	}
	return s.repo.Get(ctx, clientID, campaignID)
}

func (s *Service) List(ctx context.Context, clientID string) ([]Campaign, error) {
	if clientID == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.List(ctx, clientID)
}

// SetStatus handles pause and complete transitions.
func (s *Service) SetStatus(ctx context.Context, clientID, campaignID string, status CampaignStatus) (Campaign, error) {
	if status != StatusPaused && status != StatusCompleted {
		return Campaign{}, ErrInvalidArgument
	}
	c, err := s.repo.Get(ctx, clientID, campaignID)
	if err != nil {
		return Campaign{}, err
	}
	if c.Status != StatusActive {
		return Campaign{}, ErrInvalidArgument
	}
	c.Status = status
	c.UpdatedAt = s.clock().UTC()
	if err := s.repo.Update(ctx, c); err != nil {
		return Campaign{}, err
	}
	return c, nil
}
