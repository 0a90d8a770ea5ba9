package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"music-taste-agent/internal/config"
	"music-taste-agent/internal/infra/metrics"
)

// NewPool returns a live *pgxpool.Pool sized from config.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.ConnectConfig(cctx, pc)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.Connect: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS agent_states (
    agent_id   TEXT PRIMARY KEY,
    snapshot   TEXT NOT NULL,
    encrypted  BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// EnsureSchema creates the agent_states table when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func reportPoolStats(pool *pgxpool.Pool) {
	s := pool.Stat()
	metrics.SetDBPoolStats(s.TotalConns(), s.IdleConns(), s.AcquiredConns())
}
