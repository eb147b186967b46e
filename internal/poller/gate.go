package poller

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"collections-platform/pkg/utils"
)

// Gate enforces at-most-one active poll per call id.
type Gate interface {
	Acquire(ctx context.Context, callID string) (bool, error)
	Release(ctx context.Context, callID string) error
}

// MemoryGate is a process-local Gate for tests and single-instance deploys.
type MemoryGate struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewMemoryGate() *MemoryGate {
	return &MemoryGate{active: make(map[string]struct{})}
}

func (g *MemoryGate) Acquire(_ context.Context, callID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.active[callID]; held {
		return false, nil
	}
	g.active[callID] = struct{}{}
	return true, nil
}

func (g *MemoryGate) Release(_ context.Context, callID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, callID)
	return nil
}

// RedisGate coordinates poll exclusivity across instances. The TTL outlives
// the full polling schedule so a crashed poller's slot expires on its own.
type RedisGate struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGate(rdb *redis.Client) *RedisGate {
	return &RedisGate{rdb: rdb, ttl: 15 * time.Minute}
}

func (g *RedisGate) Acquire(ctx context.Context, callID string) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, g.rdb, "poller:call:"+callID, 1, g.ttl)
}

func (g *RedisGate) Release(ctx context.Context, callID string) error {
	return utils.ReleaseConcurrencyCap(ctx, g.rdb, "poller:call:"+callID)
}
