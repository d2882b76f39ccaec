package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/config"
)

// NewRedis opens a go-redis client and checks the server answers.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 50,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return rdb, nil
}
