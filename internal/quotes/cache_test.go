package quotes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestStatsCacheServesUntilInvalidated(t *testing.T) {
	_, client := newRedis(t)
	cache := NewStatsCache(client, time.Minute)
	ctx := context.Background()
	filter := StatsFilter{TenantID: 5}

	calls := 0
	load := func(context.Context) (StatsReport, error) {
		calls++
		return StatsReport{Total: calls}, nil
	}

	first, err := cache.Fetch(ctx, filter, load)
	require.NoError(t, err)
	second, err := cache.Fetch(ctx, filter, load)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Total, second.Total)

	require.NoError(t, cache.Invalidate(ctx, 99))
	_, err = cache.Fetch(ctx, filter, load)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "other tenant invalidation must not evict")

	require.NoError(t, cache.Invalidate(ctx, 5))
	third, err := cache.Fetch(ctx, filter, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, third.Total)
}

func TestStatsCacheExpiresWithTTL(t *testing.T) {
	mr, client := newRedis(t)
	cache := NewStatsCache(client, 30*time.Second)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (StatsReport, error) {
		calls++
		return StatsReport{}, nil
	}
	_, err := cache.Fetch(ctx, StatsFilter{TenantID: 1}, load)
	require.NoError(t, err)
	mr.FastForward(31 * time.Second)
	_, err = cache.Fetch(ctx, StatsFilter{TenantID: 1}, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestStatsCacheDoesNotStoreFailures(t *testing.T) {
	_, client := newRedis(t)
	cache := NewStatsCache(client, time.Minute)
	ctx := context.Background()

	boom := errors.New("boom")
	_, err := cache.Fetch(ctx, StatsFilter{TenantID: 1}, func(context.Context) (StatsReport, error) {
		return StatsReport{}, boom
	})
	require.ErrorIs(t, err, boom)

	report, err := cache.Fetch(ctx, StatsFilter{TenantID: 1}, func(context.Context) (StatsReport, error) {
		return StatsReport{Total: 4}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Total)
}
