// Package redisstore provides the Redis-backed implementations of the
// buffer and history stores. Redis is the only resource shared across
// front-end instances; everything else is process-local.
package redisstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/zapbotio/zapbot/internal/config"
)

// Open connects to Redis and verifies the connection so a bad address
// fails at startup instead of on the first inbound message.
func Open(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}
