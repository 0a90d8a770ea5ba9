package adapter

import "context"

// Message represents one chat message sent to a language model.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Usage for a single completion call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything a provider needs for one call.
// Zero MaxTokens or Temperature means "provider default".
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// LanguageModel is the port for LLM chat providers.
type LanguageModel interface {
	// Provider returns the short provider name used in metrics and routing ("openai", "gemini", ...).
	Provider() string

	// CountTokens returns prompt tokens for the provided messages
	// (best-effort when the provider has no exact counter).
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)

	// Complete returns the assistant text and usage as reported by the provider.
	Complete(ctx context.Context, req CompletionRequest) (string, Usage, error)
}
