package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"music-taste-agent/internal/domain"
	"music-taste-agent/internal/domain/model"
	"music-taste-agent/internal/domain/ports/repository"
	"music-taste-agent/internal/infra/db/snapshot"
	"music-taste-agent/internal/infra/metrics"
)

var _ repository.AgentStateRepository = (*AgentStateRepo)(nil)

// AgentStateRepo keeps one row per agent holding the whole snapshot,
// optionally sealed with the configured encryption key.
type AgentStateRepo struct {
	pool  *pgxpool.Pool
	codec snapshot.Codec
}

// executor is the subset shared by *pgxpool.Pool and *pgxpool.Conn.
type executor interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// exec picks the connection pinned by AdvisoryLocker when ctx carries one.
func (r *AgentStateRepo) exec(ctx context.Context) executor {
	if conn, ok := connFrom(ctx); ok {
		return conn
	}
	return r.pool
}

func NewPostgresAgentStateRepo(pool *pgxpool.Pool, codec snapshot.Codec) *AgentStateRepo {
	return &AgentStateRepo{pool: pool, codec: codec}
}

func (r *AgentStateRepo) Load(ctx context.Context, agentID string) (st *model.AgentState, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveStateStore("postgres", "load", msSince(start), err == nil || errors.Is(err, domain.ErrNotFound))
		reportPoolStats(r.pool)
	}()

	const q = `SELECT snapshot FROM agent_states WHERE agent_id = $1;`
	var stored string
	if err := r.exec(ctx).QueryRow(ctx, q, agentID).Scan(&stored); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load agent state: %w", err)
	}
	return r.codec.Decode(agentID, stored)
}

func (r *AgentStateRepo) Save(ctx context.Context, agentID string, st *model.AgentState) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveStateStore("postgres", "save", msSince(start), err == nil)
		reportPoolStats(r.pool)
	}()

	stored, err := r.codec.Encode(agentID, st)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO agent_states (agent_id, snapshot, encrypted, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (agent_id) DO UPDATE SET
  snapshot = EXCLUDED.snapshot,
  encrypted = EXCLUDED.encrypted,
  updated_at = EXCLUDED.updated_at;`
	if _, err := r.exec(ctx).Exec(ctx, q, agentID, stored, r.codec.Encrypted()); err != nil {
		return fmt.Errorf("save agent state: %w", err)
	}
	return nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
