package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const statsKeyPrefix = "stats:month:"

// RedisStatsCache stores the all-users month aggregation as JSON.
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisStatsCache(ctx context.Context, url string, ttl time.Duration, log *zap.Logger) (*RedisStatsCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info("✅ Connected to Redis", zap.String("addr", opts.Addr))
	return &RedisStatsCache{client: client, ttl: ttl, log: log}, nil
}

func (c *RedisStatsCache) Get(ctx context.Context, month string, dst any) (bool, error) {
	raw, err := c.client.Get(ctx, statsKeyPrefix+month).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// unreadable entry, drop it and recompute
		c.client.Del(ctx, statsKeyPrefix+month)
		return false, nil
	}
	return true, nil
}

func (c *RedisStatsCache) Set(ctx context.Context, month string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statsKeyPrefix+month, raw, c.ttl).Err()
}

func (c *RedisStatsCache) Invalidate(ctx context.Context, months ...string) error {
	if len(months) == 0 {
		return nil
	}
	keys := make([]string, len(months))
	for i, m := range months {
		keys[i] = statsKeyPrefix + m
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisStatsCache) Close() error {
	return c.client.Close()
}
