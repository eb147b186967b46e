// Package reporting aggregates finalized call, debtor, and promise data for
// the dashboard. It only reads; nothing here mutates records.
package reporting

import (
	"context"
	"errors"
	"time"

	"collections-platform/internal/audit"
	"collections-platform/internal/calls"
	"collections-platform/internal/promises"
)

var ErrInvalidArgument = errors.New("reporting: invalid argument")

// DebtorTotals summarizes the debtor book.
type DebtorTotals struct {
	Count           int   `json:"count"`
	OptedOut        int   `json:"opted_out"`
	AmountOwedMinor int64 `json:"amount_owed_minor"`
}

// CallCounts summarizes call volume since a cutoff.
type CallCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Repository answers the aggregate queries the dashboard needs.
type Repository interface {
	DebtorTotals(ctx context.Context, clientID string) (DebtorTotals, error)
	CallCounts(ctx context.Context, clientID string, since time.Time) (CallCounts, error)
	OutcomeCounts(ctx context.Context, clientID string) (map[calls.CallOutcome]int, error)
}

type PromiseSummarizer interface {
	PendingSummary(ctx context.Context, clientID string) (promises.PendingSummary, error)
}

type ActivityLister interface {
	Recent(ctx context.Context, clientID string, limit int) ([]audit.Event, error)
}

// Dashboard is the aggregated view served to the UI.
type Dashboard struct {
	Debtors DebtorTotals `json:"debtors"`

	CallsToday    CallCounts `json:"calls_today"`
	CallsThisWeek CallCounts `json:"calls_this_week"`

	// Outcomes only counts calls with a validated extraction; calls that
	// completed without one are deliberately absent so the dashboard
	// never fabricates outcomes.
	Outcomes map[calls.CallOutcome]int `json:"outcomes"`

	PendingPromises promises.PendingSummary `json:"pending_promises"`

	RecentActivity []audit.Event `json:"recent_activity"`
}

type Service struct {
	repo     Repository
	promises PromiseSummarizer
	activity ActivityLister
	clock    func() time.Time
}

func NewService(repo Repository, promiseSvc PromiseSummarizer, activity ActivityLister) *Service {
	return &Service{repo: repo, promises: promiseSvc, activity: activity, clock: time.Now}
}

func (s *Service) Dashboard(ctx context.Context, clientID string) (Dashboard, error) {
	if clientID == "" {
		return Dashboard{}, ErrInvalidArgument
	}

	now := s.clock().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := today.AddDate(0, 0, -int(today.Weekday()))

	var out Dashboard
	var err error

	if out.Debtors, err = s.repo.DebtorTotals(ctx, clientID); err != nil {
		return Dashboard{}, err
	}
	if out.CallsToday, err = s.repo.CallCounts(ctx, clientID, today); err != nil {
		return Dashboard{}, err
	}
	if out.CallsThisWeek, err = s.repo.CallCounts(ctx, clientID, weekStart); err != nil {
		return Dashboard{}, err
	}
	if out.Outcomes, err = s.repo.OutcomeCounts(ctx, clientID); err != nil {
		return Dashboard{}, err
	}
	if out.PendingPromises, err = s.promises.PendingSummary(ctx, clientID); err != nil {
		return Dashboard{}, err
	}
	if out.RecentActivity, err = s.activity.Recent(ctx, clientID, 20); err != nil {
		return Dashboard{}, err
	}
	return out, nil
}
