package memory

import (
	"context"
	"sync"
	"time"

	"music-taste-agent/internal/domain/ports/repository"
	"music-taste-agent/internal/infra/metrics"
)

var _ repository.AgentLocker = (*Locker)(nil)

// Locker is a per-agent mutex for single-process deployments.
// Waiters give up when their context is done.
type Locker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{} // buffered(1): holding the token means holding the lock
	refs int
}

func NewLocker() *Locker {
	return &Locker{slots: make(map[string]*slot)}
}

func (l *Locker) Acquire(ctx context.Context, agentID string) (context.Context, func(), error) {
	start := time.Now()

	l.mu.Lock()
	s, ok := l.slots[agentID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[agentID] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(agentID, s)
		return nil, nil, ctx.Err()
	}
	metrics.ObserveLockWait("memory", time.Since(start).Milliseconds())

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			<-s.ch
			l.drop(agentID, s)
		})
	}, nil
}

// drop releases a reference and forgets idle slots so the map does not grow
// with every agent ever seen.
func (l *Locker) drop(agentID string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, agentID)
	}
}
