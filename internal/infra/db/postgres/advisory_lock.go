package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"music-taste-agent/internal/domain"
	"music-taste-agent/internal/domain/ports/repository"
	"music-taste-agent/internal/infra/metrics"
)

var _ repository.AgentLocker = (*AdvisoryLocker)(nil)

// AdvisoryLocker maps each agent id to a session-level advisory lock. The
// pooled connection that took the lock is pinned until release, because
// advisory locks belong to the session. The returned context carries that
// connection so AgentStateRepo runs the load and save on it instead of
// taking a second one from the pool.
type AdvisoryLocker struct {
	pool *pgxpool.Pool
	log  *zerolog.Logger
}

func NewAdvisoryLocker(pool *pgxpool.Pool, logger *zerolog.Logger) *AdvisoryLocker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &AdvisoryLocker{pool: pool, log: logger}
}

func (l *AdvisoryLocker) Acquire(ctx context.Context, agentID string) (context.Context, func(), error) {
	start := time.Now()
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire conn: %w", err)
	}
	// blocks server-side; pgx cancels the query when ctx is done
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(hashtext($1))`, agentID); err != nil {
		conn.Release()
		if pgconn.Timeout(err) {
			return nil, nil, fmt.Errorf("%w: %v", domain.ErrLockTimeout, err)
		}
		return nil, nil, fmt.Errorf("advisory lock: %w", err)
	}
	metrics.ObserveLockWait("postgres", time.Since(start).Milliseconds())

	return withConn(ctx, conn), func() {
		uctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(uctx, `SELECT pg_advisory_unlock(hashtext($1))`, agentID); err != nil {
			// a session holding a stale lock must not go back to the pool
			l.log.Warn().Err(err).Str("agent_id", agentID).Msg("advisory unlock failed, closing connection")
			_ = conn.Conn().Close(uctx)
		}
		conn.Release()
	}, nil
}

type connKey struct{}

func withConn(ctx context.Context, conn *pgxpool.Conn) context.Context {
	return context.WithValue(ctx, connKey{}, conn)
}

func connFrom(ctx context.Context) (*pgxpool.Conn, bool) {
	c, ok := ctx.Value(connKey{}).(*pgxpool.Conn)
	return c, ok
}
