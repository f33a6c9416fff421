package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ReportCache stores generated analytics reports for a short time
type ReportCache interface {
	Get(ctx context.Context, key string) (*Report, bool, error)
	Set(ctx context.Context, key string, report *Report, ttl time.Duration) error
}

// RedisReportCache keeps reports as JSON strings in Redis
type RedisReportCache struct {
	client *redis.Client
	prefix string
}

// NewRedisReportCache creates a report cache on an existing Redis client
func NewRedisReportCache(client *redis.Client) *RedisReportCache {
	return &RedisReportCache{client: client, prefix: "crm:analytics:"}
}

// ConnectRedis parses a redis:// URL and verifies the server answers
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// Get returns the cached report for key; a miss is (nil, false, nil)
func (c *RedisReportCache) Get(ctx context.Context, key string) (*Report, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var report Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, false, fmt.Errorf("corrupt cached report %s: %w", key, err)
	}
	return &report, true, nil
}

// Set stores report under key for ttl
func (c *RedisReportCache) Set(ctx context.Context, key string, report *Report, ttl time.Duration) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, raw, ttl).Err()
}
