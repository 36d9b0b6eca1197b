package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/diagnosis/studio-bookings/pkg/config"
	"github.com/redis/go-redis/v9"
)

func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// WindowCounter counts hits per key inside fixed windows.
type WindowCounter struct {
	client *redis.Client
	prefix string
}

func NewWindowCounter(client *redis.Client, prefix string) *WindowCounter {
	return &WindowCounter{client: client, prefix: prefix}
}

// Incr bumps the counter for key and returns the hit count of the current window.
// The first hit of a window sets its expiry.
func (c *WindowCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	bucket := time.Now().UnixNano() / int64(window)
	fullKey := fmt.Sprintf("%s:%s:%d", c.prefix, key, bucket)

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Ping is used as a health probe.
func (c *WindowCounter) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
