package connector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RinkuLib/RinkuLib/database"
)

// Connect establishes a PostgreSQL pool per cfg and wraps it in the driver
// abstraction the engine executes through.
func Connect(ctx context.Context, cfg Config) (database.Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	var pool *pgxpool.Pool
	connect := func(ctx context.Context) error {
		p, err := newPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}

	if cfg.Retry != nil {
		if err := retryConnect(ctx, cfg.Retry, connect); err != nil {
			return nil, fmt.Errorf("failed to connect after %d retries: %w", cfg.Retry.MaxRetries, err)
		}
	} else if err := connect(ctx); err != nil {
		return nil, err
	}

	return database.NewPgxDatabase(pool), nil
}

func newPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}

	if cfg.Pool.MaxOpen > 0 {
		poolCfg.MaxConns = int32(cfg.Pool.MaxOpen)
	}
	if cfg.Pool.MaxIdle > 0 {
		poolCfg.MinConns = int32(cfg.Pool.MaxIdle)
	}
	if cfg.Pool.MaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.Pool.MaxLifetime
	}
	if cfg.Pool.MaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.Pool.MaxIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
