package webhook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// ReplayGuard admits each key once while it is remembered.
type ReplayGuard interface {
	// Claim returns true the first time key is seen and false afterwards.
	Claim(ctx context.Context, key string) (bool, error)
}

// MemoryReplayGuard remembers keys in process memory for ttl. When more than
// size keys are live, the oldest are forgotten first.
type MemoryReplayGuard struct {
	mu   sync.Mutex
	seen *expirable.LRU[string, struct{}]
}

// NewMemoryReplayGuard creates an in-process guard.
func NewMemoryReplayGuard(size int, ttl time.Duration) *MemoryReplayGuard {
	return &MemoryReplayGuard{seen: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

func (g *MemoryReplayGuard) Claim(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Get, unlike Contains, treats expired entries as absent.
	if _, seen := g.seen.Get(key); seen {
		return false, nil
	}
	g.seen.Add(key, struct{}{})
	return true, nil
}

// RedisReplayGuard shares claimed keys between API replicas through SETNX.
type RedisReplayGuard struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisReplayGuard creates a guard storing keys under prefix for ttl.
func NewRedisReplayGuard(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisReplayGuard {
	return &RedisReplayGuard{client: client, prefix: prefix, ttl: ttl}
}

func (g *RedisReplayGuard) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.prefix+key, 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim webhook replay key: %w", err)
	}
	return ok, nil
}
