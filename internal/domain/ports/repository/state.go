package repository

import (
	"context"

	"music-taste-agent/internal/domain/model"
)

// AgentStateRepository stores one AgentState snapshot per agent identity.
// Load returns domain.ErrNotFound when no snapshot exists yet.
type AgentStateRepository interface {
	Load(ctx context.Context, agentID string) (*model.AgentState, error)
	Save(ctx context.Context, agentID string, state *model.AgentState) error
}
