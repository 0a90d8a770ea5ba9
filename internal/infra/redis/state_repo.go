package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"music-taste-agent/internal/domain"
	"music-taste-agent/internal/domain/model"
	"music-taste-agent/internal/domain/ports/repository"
	"music-taste-agent/internal/infra/metrics"
)

var _ repository.AgentStateRepository = (*StateRepo)(nil)

// StateRepo stores one JSON snapshot per agent under agent_state:<id>.
// Snapshots never expire.
type StateRepo struct {
	client *Client
}

func NewStateRepo(client *Client) *StateRepo {
	return &StateRepo{client: client}
}

func stateKey(agentID string) string {
	return "agent_state:" + agentID
}

func (s *StateRepo) Load(ctx context.Context, agentID string) (*model.AgentState, error) {
	start := time.Now()
	data, err := s.client.Get(ctx, stateKey(agentID))
	if errors.Is(err, redis.Nil) {
		metrics.ObserveStateStore("redis", "load", msSince(start), true)
		return nil, domain.ErrNotFound
	}
	if err != nil {
		metrics.ObserveStateStore("redis", "load", msSince(start), false)
		return nil, err
	}

	var st model.AgentState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		metrics.ObserveStateStore("redis", "load", msSince(start), false)
		return nil, err
	}
	metrics.ObserveStateStore("redis", "load", msSince(start), true)
	return &st, nil
}

func (s *StateRepo) Save(ctx context.Context, agentID string, st *model.AgentState) error {
	start := time.Now()
	data, err := json.Marshal(st)
	if err == nil {
		err = s.client.Set(ctx, stateKey(agentID), data, 0)
	}
	metrics.ObserveStateStore("redis", "save", msSince(start), err == nil)
	return err
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
