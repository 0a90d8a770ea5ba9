package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"music-taste-agent/internal/domain"
	"music-taste-agent/internal/domain/model"
	"music-taste-agent/internal/domain/ports/repository"
	"music-taste-agent/internal/infra/db/snapshot"
	"music-taste-agent/internal/infra/metrics"
)

var _ repository.AgentStateRepository = (*AgentStateRepo)(nil)

// AgentStateRepo persists snapshots in a single-file SQLite database.
type AgentStateRepo struct {
	db    *sql.DB
	codec snapshot.Codec
}

// Open creates the database file and schema when missing.
func Open(dbPath string, codec snapshot.Codec) (*AgentStateRepo, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer avoids SQLITE_BUSY between concurrent saves
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS agent_states (
		agent_id   TEXT PRIMARY KEY,
		snapshot   TEXT NOT NULL,
		encrypted  INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &AgentStateRepo{db: db, codec: codec}, nil
}

func (r *AgentStateRepo) Load(ctx context.Context, agentID string) (st *model.AgentState, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveStateStore("sqlite", "load", msSince(start), err == nil || errors.Is(err, domain.ErrNotFound))
	}()

	var stored string
	err = r.db.QueryRowContext(ctx, `SELECT snapshot FROM agent_states WHERE agent_id = ?`, agentID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load agent state: %w", err)
	}
	return r.codec.Decode(agentID, stored)
}

func (r *AgentStateRepo) Save(ctx context.Context, agentID string, st *model.AgentState) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveStateStore("sqlite", "save", msSince(start), err == nil)
	}()

	stored, err := r.codec.Encode(agentID, st)
	if err != nil {
		return err
	}
	const q = `
	INSERT INTO agent_states (agent_id, snapshot, encrypted, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(agent_id) DO UPDATE SET
		snapshot = excluded.snapshot,
		encrypted = excluded.encrypted,
		updated_at = excluded.updated_at`
	if _, err := r.db.ExecContext(ctx, q, agentID, stored, r.codec.Encrypted(), time.Now().Unix()); err != nil {
		return fmt.Errorf("save agent state: %w", err)
	}
	return nil
}

func (r *AgentStateRepo) Close() error {
	return r.db.Close()
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
