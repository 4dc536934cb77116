package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/helpdesk-datagen/pkg/config"
)

// KeyPrefix namespaces every key written by the service.
const KeyPrefix = "datagen"

// RunKey returns the cache key of a run record.
func RunKey(runID string) string {
	return fmt.Sprintf("%s:run:%s", KeyPrefix, runID)
}

// RunPattern matches every cached key of a run.
func RunPattern(runID string) string {
	return fmt.Sprintf("%s:run:%s*", KeyPrefix, runID)
}

// NewRedis returns a Redis client after a bounded ping.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
