package ai

import (
	"context"
	"errors"
	"strings"

	"music-taste-agent/internal/domain/ports/adapter"
)

var _ adapter.LanguageModel = (*MultiAIAdapter)(nil)

// MultiAIAdapter routes each request to a provider chosen by model name.
type MultiAIAdapter struct {
	defaultProvider string
	byProvider      map[string]adapter.LanguageModel
	modelToProvider map[string]string
}

// NewMultiAIAdapter does not inject any default model; it only knows a default provider.
// Each provider adapter is responsible for its own default model.
func NewMultiAIAdapter(
	defaultProvider string,
	byProvider map[string]adapter.LanguageModel,
	modelToProvider map[string]string,
) *MultiAIAdapter {
	return &MultiAIAdapter{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
		modelToProvider: modelToProvider,
	}
}

func (m *MultiAIAdapter) Provider() string { return m.defaultProvider }

func (m *MultiAIAdapter) resolveProvider(model string) string {
	if p := m.modelToProvider[model]; p != "" {
		return strings.ToLower(p)
	}
	l := strings.ToLower(model)
	switch {
	case strings.HasPrefix(l, "gemini"):
		return "gemini"
	case strings.HasPrefix(l, "gpt"), strings.HasPrefix(l, "o1"), strings.HasPrefix(l, "o3"):
		return "openai"
	case strings.HasPrefix(l, "@cf/"), strings.HasPrefix(l, "@hf/"): // Workers AI catalog
		return "workers_ai"
	default:
		return m.defaultProvider
	}
}

func (m *MultiAIAdapter) pick(model string) adapter.LanguageModel {
	if a := m.byProvider[m.resolveProvider(model)]; a != nil {
		return a
	}
	if a := m.byProvider[m.defaultProvider]; a != nil {
		return a
	}
	// last resort: first available
	for _, a := range m.byProvider {
		if a != nil {
			return a
		}
	}
	return nil
}

// Route exposes the provider that would serve model; used for metrics labels.
func (m *MultiAIAdapter) Route(model string) string {
	if a := m.pick(model); a != nil {
		return a.Provider()
	}
	return ""
}

var errNoProvider = errors.New("ai: no provider configured")

func (m *MultiAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	a := m.pick(model)
	if a == nil {
		return 0, errNoProvider
	}
	return a.CountTokens(ctx, model, messages)
}

func (m *MultiAIAdapter) Complete(ctx context.Context, req adapter.CompletionRequest) (string, adapter.Usage, error) {
	a := m.pick(req.Model)
	if a == nil {
		return "", adapter.Usage{}, errNoProvider
	}
	return a.Complete(ctx, req)
}
