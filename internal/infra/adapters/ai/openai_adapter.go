package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"

	"music-taste-agent/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.LanguageModel = (*OpenAIAdapter)(nil)

const (
	openAIBaseURL       = "https://api.openai.com/v1"
	workersAIBaseURLFmt = "https://api.cloudflare.com/client/v4/accounts/%s/ai/v1"
)

// OpenAIAdapter talks to any OpenAI-compatible Chat Completions endpoint:
// OpenAI itself or Cloudflare Workers AI.
type OpenAIAdapter struct {
	provider     string
	client       openai.Client
	defaultModel string

	encMu sync.Mutex
	encs  map[string]*tiktoken.Tiktoken
}

func NewOpenAIAdapter(apiKey, baseURL, defaultModel string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai: empty api key")
	}
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	return newCompatAdapter("openai", apiKey, baseURL, defaultModel), nil
}

// NewWorkersAIAdapter targets the OpenAI-compatible endpoint of Workers AI.
func NewWorkersAIAdapter(accountID, apiToken, defaultModel string) (*OpenAIAdapter, error) {
	if accountID == "" || apiToken == "" {
		return nil, errors.New("workers_ai: account id and api token are required")
	}
	return newCompatAdapter("workers_ai", apiToken, fmt.Sprintf(workersAIBaseURLFmt, accountID), defaultModel), nil
}

func newCompatAdapter(provider, key, baseURL, defaultModel string) *OpenAIAdapter {
	return &OpenAIAdapter{
		provider: provider,
		client: openai.NewClient(
			option.WithAPIKey(key),
			option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"),
			option.WithMaxRetries(0), // one attempt; callers fall back
		),
		defaultModel: defaultModel,
		encs:         make(map[string]*tiktoken.Tiktoken),
	}
}

func (o *OpenAIAdapter) Provider() string { return o.provider }

func (o *OpenAIAdapter) Complete(ctx context.Context, req adapter.CompletionRequest) (string, adapter.Usage, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(modelOrDefault(req.Model, o.defaultModel)),
		Messages: toOpenAIMessages(req.System, req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", adapter.Usage{}, fmt.Errorf("%s chat completion: %w", o.provider, err)
	}
	u := adapter.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, u, nil
		}
	}
	return "", u, errors.New(o.provider + ": no choice content")
}

// CountTokens estimates prompt size with tiktoken. Non-OpenAI models fall back
// to cl100k_base, which is close enough for Llama-family tokenizers in metrics.
func (o *OpenAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	enc, err := o.encoding(modelOrDefault(model, o.defaultModel))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range messages {
		// ~4 tokens of framing per message in the chat format
		n += 4 + len(enc.Encode(m.Role, nil, nil)) + len(enc.Encode(m.Content, nil, nil))
	}
	return n + 2, nil
}

func (o *OpenAIAdapter) encoding(model string) (*tiktoken.Tiktoken, error) {
	o.encMu.Lock()
	defer o.encMu.Unlock()
	if enc, ok := o.encs[model]; ok {
		return enc, nil
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		if enc, err = tiktoken.GetEncoding("cl100k_base"); err != nil {
			return nil, fmt.Errorf("tiktoken: %w", err)
		}
	}
	o.encs[model] = enc
	return enc, nil
}

func toOpenAIMessages(system string, msgs []adapter.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
