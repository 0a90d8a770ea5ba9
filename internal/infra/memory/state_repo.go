package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"music-taste-agent/internal/domain"
	"music-taste-agent/internal/domain/model"
	"music-taste-agent/internal/domain/ports/repository"
	"music-taste-agent/internal/infra/metrics"
)

var _ repository.AgentStateRepository = (*StateRepo)(nil)

// StateRepo keeps snapshots in process memory. Values are stored as encoded
// JSON so callers never share slices with the store.
type StateRepo struct {
	mu     sync.RWMutex
	states map[string][]byte
}

func NewStateRepo() *StateRepo {
	return &StateRepo{states: make(map[string][]byte)}
}

func (r *StateRepo) Load(ctx context.Context, agentID string) (*model.AgentState, error) {
	start := time.Now()
	r.mu.RLock()
	raw, ok := r.states[agentID]
	r.mu.RUnlock()
	if !ok {
		metrics.ObserveStateStore("memory", "load", msSince(start), true)
		return nil, domain.ErrNotFound
	}
	var st model.AgentState
	err := json.Unmarshal(raw, &st)
	metrics.ObserveStateStore("memory", "load", msSince(start), err == nil)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *StateRepo) Save(ctx context.Context, agentID string, st *model.AgentState) error {
	start := time.Now()
	raw, err := json.Marshal(st)
	if err != nil {
		metrics.ObserveStateStore("memory", "save", msSince(start), false)
		return err
	}
	r.mu.Lock()
	r.states[agentID] = raw
	r.mu.Unlock()
	metrics.ObserveStateStore("memory", "save", msSince(start), true)
	return nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
