package ai

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"music-taste-agent/internal/domain/ports/adapter"
)

var _ adapter.LanguageModel = (*NoopAIAdapter)(nil)

const noopReply = "I'm running without a language model right now, but I'm still keeping track of your music. Log a song or tell me what you're into!"

// NoopAIAdapter answers locally for development without provider credentials.
// Suggestion requests get an empty JSON array.
type NoopAIAdapter struct {
	log *zerolog.Logger
}

func NewNoopAIAdapter(logger *zerolog.Logger) *NoopAIAdapter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &NoopAIAdapter{log: logger}
}

func (a *NoopAIAdapter) Provider() string { return "noop" }

func (a *NoopAIAdapter) Complete(ctx context.Context, req adapter.CompletionRequest) (string, adapter.Usage, error) {
	// Simulate slight processing time and respect ctx
	select {
	case <-time.After(20 * time.Millisecond):
	case <-ctx.Done():
		return "", adapter.Usage{}, ctx.Err()
	}
	a.log.Debug().Int("messages", len(req.Messages)).Msg("noop completion")
	if len(req.Messages) == 0 {
		return "[]", adapter.Usage{}, nil
	}
	return noopReply, adapter.Usage{}, nil
}

func (a *NoopAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	n := 0
	for _, m := range messages {
		n += len(m.Content) / 4
	}
	return n, nil
}
