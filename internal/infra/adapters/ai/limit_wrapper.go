package ai

import (
	"context"

	"music-taste-agent/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.LanguageModel = (*limitedAI)(nil)

// limitedAI caps in-flight provider calls. Waiting for a slot honours ctx, so
// a generator timeout also covers time spent queued.
type limitedAI struct {
	inner adapter.LanguageModel
	sem   chan struct{}
}

func NewLimitedAI(inner adapter.LanguageModel, maxConcurrent int) adapter.LanguageModel {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAI{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedAI) Provider() string { return l.inner.Provider() }

func (l *limitedAI) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limitedAI) Complete(ctx context.Context, req adapter.CompletionRequest) (string, adapter.Usage, error) {
	if err := l.acquire(ctx); err != nil {
		return "", adapter.Usage{}, err
	}
	defer func() { <-l.sem }()
	return l.inner.Complete(ctx, req)
}

func (l *limitedAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	// local tokenization for most providers; not worth a slot
	return l.inner.CountTokens(ctx, model, messages)
}

// Route reports the provider the wrapped router would pick for model.
func (l *limitedAI) Route(model string) string {
	if r, ok := l.inner.(interface{ Route(string) string }); ok {
		return r.Route(model)
	}
	return l.inner.Provider()
}
