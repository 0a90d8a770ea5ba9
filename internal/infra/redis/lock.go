package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"music-taste-agent/internal/domain"
	"music-taste-agent/internal/domain/ports/repository"
	"music-taste-agent/internal/infra/metrics"
)

var _ repository.AgentLocker = (*RedisLocker)(nil)

const lockRetryEvery = 50 * time.Millisecond

// RedisLocker is a distributed per-agent lock: SET NX with a random token and
// a TTL, released by a compare-and-delete script. The TTL must outlive the
// slowest load/generate/save cycle.
type RedisLocker struct {
	cli *redis.Client
	ttl time.Duration
	log *zerolog.Logger
}

func NewLocker(c *Client, ttl time.Duration, logger *zerolog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &RedisLocker{cli: c.cli, ttl: ttl, log: logger}
}

func lockKey(agentID string) string {
	return "agent_lock:" + agentID
}

// Acquire retries until the lock is taken or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, agentID string) (context.Context, func(), error) {
	start := time.Now()
	key := lockKey(agentID)
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryEvery)
	defer ticker.Stop()
	for {
		ok, err := l.cli.SetNX(ctx, key, token, l.ttl).Result()
		if err == nil && ok {
			metrics.ObserveLockWait("redis", time.Since(start).Milliseconds())
			return ctx, func() { l.unlock(key, token) }, nil
		}
		if err != nil && ctx.Err() == nil {
			l.log.Debug().Err(err).Str("key", key).Msg("lock attempt failed")
		}
		select {
		case <-ctx.Done():
			return nil, nil, domain.ErrLockTimeout
		case <-ticker.C:
		}
	}
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *RedisLocker) unlock(key, token string) {
	// the caller's ctx may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result(); err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("unlock failed, lock will expire by ttl")
	}
}
