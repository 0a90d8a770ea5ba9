// Package snapshot encodes AgentState values for the SQL backends.
package snapshot

import (
	"encoding/json"
	"fmt"

	"music-taste-agent/internal/domain/model"
	"music-taste-agent/internal/infra/security"
)

// Codec turns a state into the stored text form and back. With a nil
// EncryptionService snapshots are stored as plain JSON.
type Codec struct {
	enc *security.EncryptionService
}

func NewCodec(enc *security.EncryptionService) Codec {
	return Codec{enc: enc}
}

func (c Codec) Encode(agentID string, st *model.AgentState) (string, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if c.enc == nil {
		return string(raw), nil
	}
	return c.enc.Seal(agentID, raw)
}

func (c Codec) Decode(agentID, stored string) (*model.AgentState, error) {
	raw := []byte(stored)
	if security.IsSealed(stored) {
		if c.enc == nil {
			return nil, fmt.Errorf("snapshot for %s is encrypted but no encryption key is configured", agentID)
		}
		var err error
		if raw, err = c.enc.Open(agentID, stored); err != nil {
			return nil, err
		}
	}
	var st model.AgentState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &st, nil
}

func (c Codec) Encrypted() bool { return c.enc != nil }
