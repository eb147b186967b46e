package promises

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu       sync.RWMutex
	promises map[string]Promise
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{promises: make(map[string]Promise)}
}

func (r *MemoryRepo) Create(_ context.Context, p Promise) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.promises[p.ID] = p
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, clientID, promiseID string) (Promise, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.promises[promiseID]
	if !ok || p.ClientID != clientID {
		return Promise{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepo) Update(_ context.Context, p Promise) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.promises[p.ID]; !ok {
		return ErrNotFound
	}
	r.promises[p.ID] = p
	return nil
}

func (r *MemoryRepo) List(_ context.Context, clientID string, f ListFilter) ([]Promise, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]Promise, 0)
	for _, p := range r.promises {
		if p.ClientID != clientID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.DebtorID != "" && p.DebtorID != f.DebtorID {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if f.Offset >= total {
		return []Promise{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

func (r *MemoryRepo) PendingSummary(_ context.Context, clientID string) (PendingSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out PendingSummary
	for _, p := range r.promises {
		if p.ClientID != clientID || p.Status != StatusPending {
			continue
		}
		out.Count++
		out.AmountMinor += p.AmountMinor
	}
	return out, nil
}

func (r *MemoryRepo) MarkOverdue(_ context.Context, clientID string, before, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := 0
	for id, p := range r.promises {
		if p.ClientID != clientID || p.Status != StatusPending {
			continue
		}
		if !p.PromiseDate.Before(before) {
			continue
		}
		p.Status = StatusOverdue
		p.UpdatedAt = now
		r.promises[id] = p
		changed++
	}
	return changed, nil
}
