package repository

import "context"

// AgentLocker serializes load/save cycles for one agent identity.
// Load and Save inside the critical section must use the returned context;
// backends may bind resources to it (the postgres locker pins its connection).
// The returned release func must be called exactly once.
type AgentLocker interface {
	Acquire(ctx context.Context, agentID string) (locked context.Context, release func(), err error)
}
