package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotCache keeps financial snapshots in Redis keyed per member. Every
// mutating billing operation invalidates the member's key, so a short TTL
// only bounds staleness against out-of-band writes. A nil cache or client
// degrades to pass-through.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache instantiates the cache helper.
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

func snapshotKey(memberID int64) string {
	return fmt.Sprintf("billing:snapshot:%d", memberID)
}

// Fetch loads a cached snapshot or populates it using the loader.
func (c *SnapshotCache) Fetch(ctx context.Context, memberID int64, loader func(context.Context) (*FinancialSnapshot, error)) (*FinancialSnapshot, error) {
	if loader == nil {
		return nil, errors.New("snapshot cache: loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}

	key := snapshotKey(memberID)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var snapshot FinancialSnapshot
		if err := json.Unmarshal(raw, &snapshot); err == nil {
			return &snapshot, nil
		}
		// corrupt entry, fall through and repopulate
	} else if err != redis.Nil {
		return nil, fmt.Errorf("snapshot cache: get: %w", err)
	}

	snapshot, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		return nil, fmt.Errorf("snapshot cache: set: %w", err)
	}
	return snapshot, nil
}

// Invalidate drops the member's cached snapshot. Best effort: cache misses
// must never fail a mutation that already committed.
func (c *SnapshotCache) Invalidate(ctx context.Context, memberID int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, snapshotKey(memberID)).Err()
}
