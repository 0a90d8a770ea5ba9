package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"music-taste-agent/internal/domain"
	"music-taste-agent/internal/domain/model"
	"music-taste-agent/internal/domain/ports/adapter"
	"music-taste-agent/internal/infra/metrics"
)

var (
	_ adapter.TextGenerator       = (*MusicGenerator)(nil)
	_ adapter.SuggestionGenerator = (*MusicGenerator)(nil)
)

type GeneratorConfig struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// MusicGenerator builds the music-assistant prompts on top of a LanguageModel.
type MusicGenerator struct {
	lm  adapter.LanguageModel
	cfg GeneratorConfig
	log *zerolog.Logger
}

func NewMusicGenerator(lm adapter.LanguageModel, cfg GeneratorConfig, logger *zerolog.Logger) *MusicGenerator {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &MusicGenerator{lm: lm, cfg: cfg, log: logger}
}

var replyPrompt = template.Must(template.New("reply").Parse(
	`You are a friendly music taste discovery assistant. Your goal is to help users understand their music preferences through conversation.

Current user profile:
- Favorite genres: {{.Genres}}
- Top moods: {{.Moods}}
- Total listening sessions: {{.Count}}
- Music journey started: {{.Since}}

Recent activity: {{.Recent}}

Your role:
1. Ask engaging questions about their music preferences (favorite songs, artists, genres, moods)
2. Help them discover patterns in their taste (e.g., "I notice you love upbeat indie rock!")
3. Provide insights about their listening habits
4. Suggest they log songs they're currently enjoying
5. Be conversational, enthusiastic, and curious about their music journey

When they mention songs/artists, encourage them to log it. When they want insights, analyze their patterns.
Keep responses concise and friendly - like chatting with a music-loving friend.`))

var suggestionPrompt = template.Must(template.New("suggest").Parse(
	`You are a music recommendation assistant.
The user likes the following genres: {{.Genres}}
and the following moods: {{.Moods}}.
Suggest {{.Count}} songs (title + artist + genre + mood) that match their taste.
Respond only with JSON array of objects like:
[{"song":"Song Name","artist":"Artist","genre":"Genre","mood":"Mood"}, ...]`))

func joinOr(list []string, empty string) string {
	if len(list) == 0 {
		return empty
	}
	return strings.Join(list, ", ")
}

func render(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return sb.String(), nil
}

func (g *MusicGenerator) GenerateReply(ctx context.Context, summary adapter.TasteSummary, history []model.ConversationTurn) (string, error) {
	recent, err := json.Marshal(summary.RecentActivity)
	if err != nil {
		return "", err
	}
	system, err := render(replyPrompt, map[string]any{
		"Genres": joinOr(summary.TopGenres, "Not yet discovered"),
		"Moods":  joinOr(summary.TopMoods, "Not yet discovered"),
		"Count":  summary.SessionCount,
		"Since":  summary.DiscoveredAt.Local().Format("1/2/2006"),
		"Recent": string(recent),
	})
	if err != nil {
		return "", err
	}

	msgs := make([]adapter.Message, 0, len(history))
	for _, t := range history {
		msgs = append(msgs, adapter.Message{Role: t.Role, Content: t.Content})
	}
	text, err := g.complete(ctx, "reply", system, msgs)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (g *MusicGenerator) SuggestSongs(ctx context.Context, genres, moods []string, count int) ([]model.SongSuggestion, error) {
	system, err := render(suggestionPrompt, map[string]any{
		"Genres": joinOr(genres, "None"),
		"Moods":  joinOr(moods, "None"),
		"Count":  count,
	})
	if err != nil {
		return nil, err
	}
	text, err := g.complete(ctx, "suggestions", system, nil)
	if err != nil {
		return nil, err
	}
	out, err := ParseSuggestions(text)
	if err != nil {
		g.log.Warn().Err(err).Str("raw", preview(text)).Msg("unparseable suggestions")
		return nil, err
	}
	if count > 0 && len(out) > count {
		out = out[:count]
	}
	return out, nil
}

func (g *MusicGenerator) complete(ctx context.Context, kind, system string, msgs []adapter.Message) (string, error) {
	start := time.Now()
	text, usage, err := g.lm.Complete(ctx, adapter.CompletionRequest{
		Model:       g.cfg.Model,
		System:      system,
		Messages:    msgs,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	latency := time.Since(start).Milliseconds()

	if err == nil && usage.PromptTokens == 0 {
		// some compatible endpoints omit usage
		all := append([]adapter.Message{{Role: "system", Content: system}}, msgs...)
		if n, cerr := g.lm.CountTokens(ctx, g.cfg.Model, all); cerr == nil {
			usage.PromptTokens = n
			usage.TotalTokens = n + usage.CompletionTokens
		}
	}
	metrics.ObserveCompletion(g.provider(), g.cfg.Model, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens, latency, err == nil)

	g.log.Debug().
		Str("kind", kind).
		Str("model", g.cfg.Model).
		Int64("latency_ms", latency).
		Int("tokens_in", usage.PromptTokens).
		Err(err).
		Msg("completion")
	return text, err
}

func (g *MusicGenerator) provider() string {
	if r, ok := g.lm.(interface{ Route(string) string }); ok {
		return r.Route(g.cfg.Model)
	}
	return g.lm.Provider()
}

// ParseSuggestions extracts the JSON array of suggestions from model output.
// Code fences and prose around the array are tolerated; entries missing any of
// song, artist, genre or mood are dropped.
func ParseSuggestions(text string) ([]model.SongSuggestion, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON array in response", domain.ErrMalformedSuggestions)
	}
	var raw []model.SongSuggestion
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedSuggestions, err)
	}
	out := make([]model.SongSuggestion, 0, len(raw))
	for _, s := range raw {
		if !complete(s) {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 && len(raw) > 0 {
		return nil, fmt.Errorf("%w: no complete entries", domain.ErrMalformedSuggestions)
	}
	return out, nil
}

func complete(s model.SongSuggestion) bool {
	for _, f := range []string{s.Song, s.Artist, s.Genre, s.Mood} {
		if strings.TrimSpace(f) == "" {
			return false
		}
	}
	return true
}

const previewRunes = 120

// preview shortens model output for logs without splitting a multi-byte rune.
func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	return string([]rune(s)[:previewRunes]) + "..."
}
