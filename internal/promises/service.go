package promises

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"collections-platform/internal/calls"
)

var (
	ErrNotFound        = errors.New("promises: not found")
	ErrInvalidArgument = errors.New("promises: invalid argument")
)

type ListFilter struct {
	Status   PromiseStatus
	DebtorID string

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

// PendingSummary aggregates open promises for the dashboard.
type PendingSummary struct {
	Count       int   `json:"count"`
	AmountMinor int64 `json:"amount_minor"`
}

type Repository interface {
	Create(ctx context.Context, p Promise) error
	Get(ctx context.Context, clientID, promiseID string) (Promise, error)
	Update(ctx context.Context, p Promise) error
	List(ctx context.Context, clientID string, f ListFilter) ([]Promise, int, error)
	PendingSummary(ctx context.Context, clientID string) (PendingSummary, error)

	// MarkOverdue flips pending promises dated strictly before the cutoff
	// to overdue and returns how many changed.
	MarkOverdue(ctx context.Context, clientID string, before time.Time, now time.Time) (int, error)
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// RecordFromExtraction persists the promise carried by a validated
// extraction. The extraction's amount is in major units.
func (s *Service) RecordFromExtraction(ctx context.Context, call calls.Call, ext calls.CallExtraction) error {
	if !ext.PromiseMade || ext.Promise == nil {
		return fmt.Errorf("%w: extraction carries no promise", ErrInvalidArgument)
	}

	now := s.clock().UTC()
	d := ext.Promise.PromiseDate
	p := Promise{
		ID:          uuid.NewString(),
		ClientID:    call.ClientID,
		DebtorID:    call.DebtorID,
		CallID:      call.ID,
		AmountMinor: int64(math.Round(ext.Promise.Amount * 100)),
		Currency:    "USD",
		PromiseDate: time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, clientID, promiseID string) (Promise, error) {
	if clientID == "" || promiseID == "" {
		return Promise{}, ErrInvalidArgument
	}
	return s.repo.Get(ctx, clientID, promiseID)
}

func (s *Service) List(ctx context.Context, clientID string, f ListFilter) ([]Promise, int, error) {
	if clientID == "" {
		return nil, 0, ErrInvalidArgument
	}
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, 0, ErrInvalidArgument
	}
	return s.repo.List(ctx, clientID, f.withDefaults())
}

// UpdateStatus records the resolution of a promise (fulfilled, partial,
// broken). Overdue is applied by the sweep, not by hand.
func (s *Service) UpdateStatus(ctx context.Context, clientID, promiseID string, status PromiseStatus) (Promise, error) {
	if !ValidStatus(status) || status == StatusOverdue {
		return Promise{}, ErrInvalidArgument
	}
	p, err := s.repo.Get(ctx, clientID, promiseID)
	if err != nil {
		return Promise{}, err
	}
	p.Status = status
	p.UpdatedAt = s.clock().UTC()
	if err := s.repo.Update(ctx, p); err != nil {
		return Promise{}, err
	}
	return p, nil
}

func (s *Service) PendingSummary(ctx context.Context, clientID string) (PendingSummary, error) {
	if clientID == "" {
		return PendingSummary{}, ErrInvalidArgument
	}
	return s.repo.PendingSummary(ctx, clientID)
}

// SweepOverdue marks pending promises whose date has passed as overdue.
func (s *Service) SweepOverdue(ctx context.Context, clientID string) (int, error) {
	if clientID == "" {
		return 0, ErrInvalidArgument
	}
	now := s.clock().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return s.repo.MarkOverdue(ctx, clientID, today, now)
}
