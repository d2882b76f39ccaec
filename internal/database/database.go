// Package database provides connection management for the capacity store
// backends: PostgreSQL via pgx, Redis via go-redis and embedded SQLite.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/config"
)

const connectAttempts = 5

// NewPool creates and validates a pgxpool connection pool.
// It retries a few times to accommodate containers starting up.
func NewPool(ctx context.Context, cfg config.PostgresConfig, log *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	// Sensible pool defaults for a small service.
	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	attempt := 0
	connect := func() (*pgxpool.Pool, error) {
		attempt++
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			log.Warn("db connect attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			return nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			log.Warn("db ping attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			return nil, err
		}
		return pool, nil
	}

	pool, err := backoff.Retry(ctx, connect,
		backoff.WithBackOff(backoff.NewConstantBackOff(2*time.Second)),
		backoff.WithMaxTries(connectAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return pool, nil
}
