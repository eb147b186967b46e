package campaigns

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu        sync.RWMutex
	campaigns map[string]Campaign
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{campaigns: make(map[string]Campaign)}
}

func (r *MemoryRepo) Create(_ context.Context, c Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[c.ID] = c
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, clientID, campaignID string) (Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.campaigns[campaignID]
	if !ok || c.ClientID != clientID {
		return Campaign{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) Update(_ context.Context, c Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.campaigns[c.ID]; !ok {
		return ErrNotFound
	}
	r.campaigns[c.ID] = c
	return nil
}

func (r *MemoryRepo) List(_ context.Context, clientID string) ([]Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Campaign, 0)
	for _, c := range r.campaigns {
		if c.ClientID == clientID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
