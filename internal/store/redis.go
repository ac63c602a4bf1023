package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sallandpioneers/docflow/internal/config"
)

// NewClient builds the shared Redis client used by the queue, worker
// and schema stores.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
}

// Ping verifies connectivity before the coordinator starts serving.
func Ping(ctx context.Context, rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rdb.Ping(ctx).Err()
}
