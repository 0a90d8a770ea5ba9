package ai

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"music-taste-agent/internal/domain/ports/adapter"
)

var _ adapter.LanguageModel = (*GeminiAdapter)(nil)

type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
}

// NewGeminiAdapter creates a Gemini adapter using the official SDK.
// baseURL may be empty for the public endpoint.
func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, defaultModel string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, defaultModel: defaultModel}, nil
}

func (g *GeminiAdapter) Provider() string { return "gemini" }

func (g *GeminiAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	// Per docs, CountTokens takes []*genai.Content.
	resp, err := g.client.Models.CountTokens(ctx, modelOrDefault(model, g.defaultModel), toGenAIHistory(messages), nil)
	if err != nil {
		return 0, err
	}
	return int(resp.TotalTokens), nil
}

// Complete replays all but the last message as chat history and sends the last
// one. A request without messages sends the system prompt as the user turn.
func (g *GeminiAdapter) Complete(ctx context.Context, req adapter.CompletionRequest) (string, adapter.Usage, error) {
	msgs := req.Messages
	system := req.System
	if len(msgs) == 0 {
		if system == "" {
			return "", adapter.Usage{}, errors.New("gemini: no messages")
		}
		msgs = []adapter.Message{{Role: "user", Content: system}}
		system = ""
	}
	last := msgs[len(msgs)-1]
	if strings.ToLower(last.Role) != "user" {
		return "", adapter.Usage{}, errors.New("gemini: last message must be from user")
	}

	cfg := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		cfg.Temperature = &t
	}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	chat, err := g.client.Chats.Create(ctx, modelOrDefault(req.Model, g.defaultModel), cfg, toGenAIHistory(msgs[:len(msgs)-1]))
	if err != nil {
		return "", adapter.Usage{}, err
	}
	resp, err := chat.SendMessage(ctx, genai.Part{Text: last.Content})
	if err != nil {
		return "", adapter.Usage{}, err
	}

	text := ""
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		var sb strings.Builder
		for _, p := range resp.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
		text = sb.String()
	}
	u := adapter.Usage{}
	if resp != nil && resp.UsageMetadata != nil {
		u.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		u.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		u.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return text, u, nil
}

func toGenAIHistory(msgs []adapter.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.RoleUser
		if r := strings.ToLower(m.Role); r == "assistant" || r == "model" {
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return out
}

func modelOrDefault(model, def string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return def
}
