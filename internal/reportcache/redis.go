package reportcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rpattn/changereport/internal/domain"
	"github.com/rpattn/changereport/internal/reporting"
)

var _ reporting.Cache = (*Redis)(nil)

// Redis shares closed-window reports between service instances.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisClient parses url and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// NewRedis wraps client. A zero ttl stores reports without expiry.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (c *Redis) Get(ctx context.Context, key string) (domain.Report, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Report{}, false, nil
		}
		return domain.Report{}, false, fmt.Errorf("get cached report: %w", err)
	}
	var report domain.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return domain.Report{}, false, fmt.Errorf("decode cached report: %w", err)
	}
	return report, true, nil
}

func (c *Redis) Set(ctx context.Context, key string, report domain.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("store cached report: %w", err)
	}
	return nil
}
