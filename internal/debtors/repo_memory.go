package debtors

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is a simple in-memory repository useful for tests and early
// development. It is client-scoped like the Postgres implementation.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]Debtor
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]Debtor)}
}

func (r *MemoryRepo) Create(ctx context.Context, d Debtor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[d.ID] = d
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, clientID, debtorID string) (Debtor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.rows[debtorID]
	if !ok || d.ClientID != clientID {
		return Debtor{}, ErrNotFound
	}
	return d, nil
}

func (r *MemoryRepo) Update(ctx context.Context, d Debtor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rows[d.ID]
	if !ok || existing.ClientID != d.ClientID {
		return ErrNotFound
	}
	r.rows[d.ID] = d
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, clientID string, f ListFilter) ([]Debtor, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]Debtor, 0)
	for _, d := range r.rows {
		if d.ClientID != clientID {
			continue
		}
		if f.Stage != "" && d.Stage != f.Stage {
			continue
		}
		if f.OptedOut != nil && d.OptedOut != *f.OptedOut {
			continue
		}
		matched = append(matched, d)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if f.Offset >= total {
		return []Debtor{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}
