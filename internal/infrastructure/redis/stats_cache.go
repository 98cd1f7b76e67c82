package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/realestate/internal/domain/stats"
	"github.com/redis/go-redis/v9"
)

const statsCacheKey = "realestate:stats:all"

// StatsCache stores the full statistics report for a short TTL.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, ttl: ttl}
}

// Get returns the cached report, or nil on a miss.
func (c *StatsCache) Get(ctx context.Context) (stats.Report, error) {
	raw, err := c.client.Get(ctx, statsCacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stats cache: %w", err)
	}

	var report stats.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decode stats cache: %w", err)
	}
	return report, nil
}

func (c *StatsCache) Set(ctx context.Context, report stats.Report) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode stats cache: %w", err)
	}
	if err := c.client.Set(ctx, statsCacheKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set stats cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached report. Called after a sale changes the numbers.
func (c *StatsCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, statsCacheKey).Err()
}
