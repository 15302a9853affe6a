package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"tvwebhook/internal/config"
)

const createAlertsTableSQL = `CREATE TABLE IF NOT EXISTS alerts (
    alert_id            TEXT PRIMARY KEY,
    ts                  TEXT NOT NULL,
    alert_name          TEXT NOT NULL,
    symbol              TEXT NOT NULL,
    limit_price         TEXT NOT NULL,
    capital_percent     TEXT NOT NULL,
    lot_size            TEXT NOT NULL,
    order_slicing_value TEXT NOT NULL,
    total_quantity      TEXT NOT NULL,
    processed           BOOLEAN NOT NULL,
    raw_payload         JSONB NOT NULL,
    index_name          TEXT,
    expiry_date         TEXT,
    option_type         TEXT,
    strike_price        TEXT,
    symbol_parsed       BOOLEAN NOT NULL DEFAULT FALSE,
    expiry              TIMESTAMPTZ NOT NULL
);`

const createAlertsExpiryIndexSQL = `CREATE INDEX IF NOT EXISTS idx_alerts_expiry ON alerts (expiry);`

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the alerts table when it does not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	pool, err := p.getPool()
	if err != nil {
		return err
	}
	for _, stmt := range []string{createAlertsTableSQL, createAlertsExpiryIndexSQL} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure alerts schema: %w", err)
		}
	}
	return nil
}
