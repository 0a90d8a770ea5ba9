package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"music-taste-agent/internal/domain"
	"music-taste-agent/internal/domain/model"
	"music-taste-agent/internal/infra/i18n"
	"music-taste-agent/internal/usecase"
)

// maxListedSessions keeps /sessions replies under Telegram's message size limit.
const maxListedSessions = 20

// BotFacade turns agent operations into chat-ready text.
// Keep the facade methods returning strings so the Telegram adapter just forwards them to the chat.
type BotFacade struct {
	Agent usecase.MusicAgentUseCase
	tr    *i18n.Translator
}

func NewBotFacade(agent usecase.MusicAgentUseCase, tr *i18n.Translator) *BotFacade {
	return &BotFacade{Agent: agent, tr: tr}
}

// AgentIDForChat maps a Telegram chat onto its own agent.
func AgentIDForChat(chatID int64) string {
	return "tg_" + strconv.FormatInt(chatID, 10)
}

func (b *BotFacade) HandleStart(ctx context.Context, chatID int64) string {
	return b.tr.T("welcome_message")
}

func (b *BotFacade) HandleHelp(ctx context.Context, chatID int64) string {
	return b.tr.T("help_message")
}

func (b *BotFacade) HandleChatMessage(ctx context.Context, chatID int64, text string) (string, error) {
	reply, err := b.Agent.Chat(ctx, AgentIDForChat(chatID), text)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	return reply, nil
}

// ParseLogArgs reads "song | artist | genre | mood [| rating]".
func ParseLogArgs(args string) (usecase.LogSongInput, error) {
	parts := strings.Split(args, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 4 || len(parts) > 5 {
		return usecase.LogSongInput{}, fmt.Errorf("%w: expected 4 or 5 fields, got %d", domain.ErrInvalidArgument, len(parts))
	}
	for _, p := range parts[:4] {
		if p == "" {
			return usecase.LogSongInput{}, fmt.Errorf("%w: empty field", domain.ErrInvalidArgument)
		}
	}
	in := usecase.LogSongInput{Song: parts[0], Artist: parts[1], Genre: parts[2], Mood: parts[3]}
	if len(parts) == 5 && parts[4] != "" {
		r, err := strconv.ParseFloat(parts[4], 64)
		if err != nil {
			return usecase.LogSongInput{}, &RatingError{Raw: parts[4]}
		}
		in.Rating = &r
	}
	return in, nil
}

// RatingError reports a rating that is not a number.
type RatingError struct{ Raw string }

func (e *RatingError) Error() string { return fmt.Sprintf("invalid rating %q", e.Raw) }

func (e *RatingError) Unwrap() error { return domain.ErrInvalidArgument }

// HandleLog parses the command arguments and logs the song. Bad input yields
// usage text rather than an error.
func (b *BotFacade) HandleLog(ctx context.Context, chatID int64, args string) (string, error) {
	in, err := ParseLogArgs(args)
	if err != nil {
		var re *RatingError
		if errors.As(err, &re) {
			return b.tr.T("error_invalid_rating", re.Raw), nil
		}
		return b.tr.T("usage_log"), nil
	}
	s, err := b.Agent.LogSong(ctx, AgentIDForChat(chatID), in)
	if err != nil {
		return "", fmt.Errorf("log song: %w", err)
	}
	return b.tr.T("song_logged", s.Song, s.Artist, s.Genre, s.Mood, s.ID), nil
}

func (b *BotFacade) HandleDelete(ctx context.Context, chatID int64, sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return b.tr.T("usage_delete"), nil
	}
	res, err := b.Agent.DeleteSong(ctx, AgentIDForChat(chatID), sessionID)
	if err != nil {
		return "", fmt.Errorf("delete song: %w", err)
	}
	if !res.Success {
		return b.tr.T("delete_missing"), nil
	}
	return b.tr.T("delete_ok"), nil
}

func (b *BotFacade) HandleProfile(ctx context.Context, chatID int64) (string, error) {
	p, err := b.Agent.GetTasteProfile(ctx, AgentIDForChat(chatID))
	if err != nil {
		return "", fmt.Errorf("get profile: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(b.tr.T("profile_header") + "\n\n")
	sb.WriteString(b.tr.T("profile_genres", b.joinOrNone(p.FavoriteGenres)) + "\n")
	sb.WriteString(b.tr.T("profile_moods", b.joinOrNone(p.TopMoods)) + "\n")
	sb.WriteString(b.tr.T("profile_total", p.TotalSongs) + "\n")
	if len(p.Insights) > 0 {
		sb.WriteString("\n" + b.tr.T("profile_insights") + "\n")
		for _, in := range p.Insights {
			sb.WriteString("• " + in + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// HandleSessions returns the rendered log and the sessions it lists, newest first,
// so the adapter can attach per-session buttons.
func (b *BotFacade) HandleSessions(ctx context.Context, chatID int64) (string, []model.ListeningSession, error) {
	sessions, err := b.Agent.GetListeningSessions(ctx, AgentIDForChat(chatID))
	if err != nil {
		return "", nil, fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) == 0 {
		return b.tr.T("sessions_empty"), nil, nil
	}
	shown := sessions
	if len(shown) > maxListedSessions {
		shown = shown[:maxListedSessions]
	}
	var sb strings.Builder
	sb.WriteString(b.tr.T("sessions_header", len(sessions)) + "\n\n")
	for i, s := range shown {
		sb.WriteString(fmt.Sprintf("%d) %s\n   id: %s\n", i+1, FormatSession(s), s.ID))
	}
	if extra := len(sessions) - len(shown); extra > 0 {
		sb.WriteString(b.tr.T("sessions_more", extra) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n"), shown, nil
}

func (b *BotFacade) HandleRecommendations(ctx context.Context, chatID int64) (string, error) {
	recs, err := b.Agent.GetRecommendations(ctx, AgentIDForChat(chatID))
	if err != nil {
		return "", fmt.Errorf("recommendations: %w", err)
	}
	if len(recs) == 0 {
		return b.tr.T("recs_empty"), nil
	}
	var sb strings.Builder
	sb.WriteString(b.tr.T("recs_header") + "\n\n")
	for _, r := range recs {
		sb.WriteString("• " + FormatSession(r) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// FormatSession renders one line: "Song by Artist (genre, mood) ★4.5".
func FormatSession(s model.ListeningSession) string {
	line := fmt.Sprintf("%s by %s (%s, %s)", s.Song, s.Artist, s.Genre, s.Mood)
	if s.Rating != nil {
		line += " ★" + strconv.FormatFloat(*s.Rating, 'f', -1, 64)
	}
	return line
}

func (b *BotFacade) joinOrNone(items []string) string {
	if len(items) == 0 {
		return b.tr.T("profile_none")
	}
	return strings.Join(items, ", ")
}
