package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu    sync.RWMutex
	calls map[string]Call
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{calls: make(map[string]Call)}
}

func (r *MemoryRepo) Create(_ context.Context, c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[c.ID] = c
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, clientID, callID string) (Call, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.calls[callID]
	if !ok || c.ClientID != clientID {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) GetByID(_ context.Context, callID string) (Call, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.calls[callID]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) List(_ context.Context, clientID string, f ListFilter) ([]Call, int, error) {
	f = f.withDefaults()

	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]Call, 0)
	for _, c := range r.calls {
		if c.ClientID != clientID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Outcome != "" && c.Outcome != f.Outcome {
			continue
		}
		if f.DebtorID != "" && c.DebtorID != f.DebtorID {
			continue
		}
		if f.CampaignID != "" && c.CampaignID != f.CampaignID {
			continue
		}
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if f.Offset >= total {
		return []Call{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

func (r *MemoryRepo) MarkDispatched(_ context.Context, callID, conversationID, providerSID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[callID]
	if !ok {
		return ErrNotFound
	}
	c.Status = CallStatusRinging
	c.ConversationID = conversationID
	c.ProviderCallSID = providerSID
	c.UpdatedAt = now
	r.calls[callID] = c
	return nil
}

func (r *MemoryRepo) Complete(_ context.Context, callID string, res CallCompletion, endedAt *time.Time, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[callID]
	if !ok {
		return ErrNotFound
	}
	c.Status = CallStatusCompleted
	c.DurationSeconds = res.DurationSeconds
	c.Transcript = res.Transcript
	c.TranscriptJSON = res.TranscriptJSON
	c.AISummary = res.AISummary
	c.EndedAt = endedAt
	c.UpdatedAt = now
	r.calls[callID] = c
	return nil
}

func (r *MemoryRepo) Fail(_ context.Context, callID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[callID]
	if !ok {
		return ErrNotFound
	}
	c.Status = CallStatusFailed
	c.UpdatedAt = now
	r.calls[callID] = c
	return nil
}

func (r *MemoryRepo) FailIfUnresolved(_ context.Context, callID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[callID]
	if !ok {
		return false, ErrNotFound
	}
	if c.Status.IsTerminal() {
		return false, nil
	}
	c.Status = CallStatusFailed
	c.UpdatedAt = now
	r.calls[callID] = c
	return true, nil
}

func (r *MemoryRepo) AttachExtraction(_ context.Context, callID string, outcome CallOutcome, finalState ConversationState, extraction string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[callID]
	if !ok {
		return ErrNotFound
	}
	c.Outcome = outcome
	c.FinalState = finalState
	c.Extraction = extraction
	c.UpdatedAt = now
	r.calls[callID] = c
	return nil
}
