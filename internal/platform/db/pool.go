package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultApplicationName = "careplus-clinic"

// PoolConfig sizes the pool and fixes the session settings every connection
// starts with.
type PoolConfig struct {
	DatabaseURL     string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	// TimeZone is an IANA zone name applied as the session time zone, so
	// NOW()::date and timestamp output follow the clinic calendar. Empty or
	// "Local" keeps the server default.
	TimeZone        string
	ApplicationName string
}

// ParseConfig turns c into a pgxpool config without connecting. Zero
// durations keep the pgxpool defaults.
func (c PoolConfig) ParseConfig() (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if c.MinConns > c.MaxConns && c.MaxConns > 0 {
		return nil, fmt.Errorf("min conns %d exceeds max conns %d", c.MinConns, c.MaxConns)
	}

	if c.MaxConns > 0 {
		cfg.MaxConns = c.MaxConns
	}
	cfg.MinConns = c.MinConns
	if c.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = c.MaxConnLifetime
	}
	if c.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = c.MaxConnIdleTime
	}

	params := cfg.ConnConfig.RuntimeParams
	if c.TimeZone != "" && c.TimeZone != "Local" {
		params["timezone"] = c.TimeZone
	}
	if _, ok := params["application_name"]; !ok {
		name := c.ApplicationName
		if name == "" {
			name = defaultApplicationName
		}
		params["application_name"] = name
	}
	return cfg, nil
}

func NewPool(ctx context.Context, c PoolConfig) (*pgxpool.Pool, error) {
	cfg, err := c.ParseConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
