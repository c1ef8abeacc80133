package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// StatsCacher memoises statistics per tenant.
type StatsCacher interface {
	Fetch(ctx context.Context, filter StatsFilter, load func(context.Context) (StatsReport, error)) (StatsReport, error)
	Invalidate(ctx context.Context, tenantID int64) error
}

// StatsCache stores reports in Redis under a per-tenant version. Bumping the
// version invalidates every cached filter of the tenant at once; stale keys
// age out through their TTL.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewStatsCache builds the cache. A zero ttl defaults to two minutes.
func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &StatsCache{client: client, ttl: ttl}
}

func versionKey(tenantID int64) string {
	return fmt.Sprintf("optica:quotes:stats:%d:version", tenantID)
}

// Fetch returns the cached report or computes it once across concurrent callers.
func (c *StatsCache) Fetch(ctx context.Context, filter StatsFilter, load func(context.Context) (StatsReport, error)) (StatsReport, error) {
	version, err := c.client.Get(ctx, versionKey(filter.TenantID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return StatsReport{}, err
	}
	key := fmt.Sprintf("optica:quotes:stats:%d:v%d:%s", filter.TenantID, version, filter.cacheKey())
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var report StatsReport
		if err := json.Unmarshal(raw, &report); err == nil {
			return report, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return StatsReport{}, err
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		report, err := load(ctx)
		if err != nil {
			return StatsReport{}, err
		}
		payload, err := json.Marshal(report)
		if err != nil {
			return StatsReport{}, err
		}
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			return StatsReport{}, err
		}
		return report, nil
	})
	if err != nil {
		return StatsReport{}, err
	}
	return v.(StatsReport), nil
}

// Invalidate bumps the tenant version.
func (c *StatsCache) Invalidate(ctx context.Context, tenantID int64) error {
	return c.client.Incr(ctx, versionKey(tenantID)).Err()
}
