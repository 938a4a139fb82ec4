package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ReferenceCache implements ports.ReferenceCache using Redis.
// It is the fast path for idempotent replays; the ledger's unique
// reference constraint stays the source of truth.
type ReferenceCache struct {
	client goredis.Cmdable
	prefix string
}

// NewReferenceCache creates a new Redis-backed reference cache.
func NewReferenceCache(client goredis.Cmdable) *ReferenceCache {
	return &ReferenceCache{
		client: client,
		prefix: "ledger:ref:",
	}
}

// Get returns the cached result for a reference, or nil, nil on a miss.
func (c *ReferenceCache) Get(ctx context.Context, reference string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+reference).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis reference get: %w", err)
	}
	return val, nil
}

// Set stores the result of an applied reference with TTL.
func (c *ReferenceCache) Set(ctx context.Context, reference string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+reference, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis reference set: %w", err)
	}
	return nil
}
