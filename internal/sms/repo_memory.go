package sms

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu       sync.RWMutex
	messages map[string]Message
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{messages: make(map[string]Message)}
}

func (r *MemoryRepo) Create(_ context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[m.ID] = m
	return nil
}

func (r *MemoryRepo) Update(_ context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[m.ID]; !ok {
		return ErrNotFound
	}
	r.messages[m.ID] = m
	return nil
}

func (r *MemoryRepo) GetByProviderSID(_ context.Context, providerSID string) (Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.messages {
		if m.ProviderSID == providerSID {
			return m, nil
		}
	}
	return Message{}, ErrNotFound
}

func (r *MemoryRepo) List(_ context.Context, clientID string, f ListFilter) ([]Message, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]Message, 0)
	for _, m := range r.messages {
		if m.ClientID != clientID {
			continue
		}
		if f.DebtorID != "" && m.DebtorID != f.DebtorID {
			continue
		}
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		matched = append(matched, m)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if f.Offset >= total {
		return []Message{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}
