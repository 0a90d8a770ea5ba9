package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"music-taste-agent/internal/domain"
	"music-taste-agent/internal/domain/model"
	"music-taste-agent/internal/domain/ports/adapter"
)

// memStateRepo is a small in-memory snapshot store used by unit tests.
// Snapshots are round-tripped through JSON so tests see what a real backend would return.
type memStateRepo struct {
	mu      sync.Mutex
	store   map[string][]byte
	saves   int
	saveErr error // used by tests to simulate save failures
	loadErr error
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{store: make(map[string][]byte)}
}

func (m *memStateRepo) Load(ctx context.Context, agentID string) (*model.AgentState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	raw, ok := m.store[agentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	var st model.AgentState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (m *memStateRepo) Save(ctx context.Context, agentID string, st *model.AgentState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	m.store[agentID] = raw
	m.saves++
	return nil
}

func (m *memStateRepo) snapshot(agentID string) *model.AgentState {
	st, err := m.Load(context.Background(), agentID)
	if err != nil {
		return nil
	}
	return st
}

// keyedLocker hands out one mutex per agent and counts acquisitions.
type keyedLocker struct {
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	acquired int
	err      error
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *keyedLocker) Acquire(ctx context.Context, agentID string) (context.Context, func(), error) {
	l.mu.Lock()
	if l.err != nil {
		l.mu.Unlock()
		return nil, nil, l.err
	}
	m, ok := l.locks[agentID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[agentID] = m
	}
	l.acquired++
	l.mu.Unlock()

	m.Lock()
	return ctx, m.Unlock, nil
}

type stubReplies struct {
	mu       sync.Mutex
	reply    string
	err      error
	block    bool
	calls    int
	summary  adapter.TasteSummary
	history  []model.ConversationTurn
	hadDeadl bool
}

func (s *stubReplies) GenerateReply(ctx context.Context, summary adapter.TasteSummary, history []model.ConversationTurn) (string, error) {
	s.mu.Lock()
	s.calls++
	s.summary = summary
	s.history = history
	_, s.hadDeadl = ctx.Deadline()
	block := s.block
	s.mu.Unlock()
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.reply, s.err
}

type stubSongs struct {
	out    []model.SongSuggestion
	err    error
	calls  int
	genres []string
	moods  []string
	count  int
}

func (s *stubSongs) SuggestSongs(ctx context.Context, genres, moods []string, count int) ([]model.SongSuggestion, error) {
	s.calls++
	s.genres, s.moods, s.count = genres, moods, count
	return s.out, s.err
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s_%03d", prefix, s.n)
}

// fakeClock advances one second per call so timestamps are distinct and ordered.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}
