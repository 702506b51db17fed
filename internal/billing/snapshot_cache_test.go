package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*SnapshotCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSnapshotCache(client, time.Minute), mr
}

func TestSnapshotCacheFetch(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	calls := 0
	loader := func(ctx context.Context) (*FinancialSnapshot, error) {
		calls++
		return &FinancialSnapshot{MemberID: 7, Status: MemberActive, Totals: DueTotals{Paid: 3}}, nil
	}

	first, err := cache.Fetch(ctx, 7, loader)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Equal(t, MemberActive, first.Status)

	// second fetch is served from the cache
	second, err := cache.Fetch(ctx, 7, loader)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Equal(t, first.Totals, second.Totals)

	// another member misses
	_, err = cache.Fetch(ctx, 8, loader)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestSnapshotCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	calls := 0
	loader := func(ctx context.Context) (*FinancialSnapshot, error) {
		calls++
		return &FinancialSnapshot{MemberID: 1}, nil
	}

	_, err := cache.Fetch(ctx, 1, loader)
	require.NoError(t, err)
	cache.Invalidate(ctx, 1)

	_, err = cache.Fetch(ctx, 1, loader)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestSnapshotCacheExpiry(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	calls := 0
	loader := func(ctx context.Context) (*FinancialSnapshot, error) {
		calls++
		return &FinancialSnapshot{MemberID: 1}, nil
	}

	_, err := cache.Fetch(ctx, 1, loader)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = cache.Fetch(ctx, 1, loader)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestSnapshotCacheNilDegradesToPassThrough(t *testing.T) {
	ctx := context.Background()

	var cache *SnapshotCache
	snapshot, err := cache.Fetch(ctx, 1, func(ctx context.Context) (*FinancialSnapshot, error) {
		return &FinancialSnapshot{MemberID: 1, Status: MemberPending}, nil
	})
	require.NoError(t, err)
	require.Equal(t, MemberPending, snapshot.Status)

	cache.Invalidate(ctx, 1) // must not panic

	_, err = cache.Fetch(ctx, 1, nil)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNotFound))
}

func TestSnapshotCacheLoaderErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	boom := errors.New("load failed")
	_, err := cache.Fetch(ctx, 1, func(ctx context.Context) (*FinancialSnapshot, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	snapshot, err := cache.Fetch(ctx, 1, func(ctx context.Context) (*FinancialSnapshot, error) {
		return &FinancialSnapshot{MemberID: 1}, nil
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), snapshot.MemberID)
}
