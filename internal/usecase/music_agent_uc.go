package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"music-taste-agent/internal/domain"
	"music-taste-agent/internal/domain/model"
	"music-taste-agent/internal/domain/ports/adapter"
	"music-taste-agent/internal/domain/ports/repository"
	"music-taste-agent/internal/infra/logging"
	"music-taste-agent/internal/infra/metrics"
)

const (
	ReplyFallback      = "I apologize, but I'm having trouble connecting to the AI service. Please try again in a moment!"
	EmptyReplyFallback = "Tell me about some music you love!"

	MsgSongDeleted  = "Song deleted successfully"
	MsgSongNotFound = "Song not found"

	recentProfileSessions = 10
	recommendationFacets  = 3
)

// Compile-time check
var _ MusicAgentUseCase = (*musicAgentUC)(nil)

type MusicAgentUseCase interface {
	Chat(ctx context.Context, agentID, message string) (string, error)
	LogSong(ctx context.Context, agentID string, in LogSongInput) (*model.ListeningSession, error)
	DeleteSong(ctx context.Context, agentID, sessionID string) (DeleteResult, error)
	GetTasteProfile(ctx context.Context, agentID string) (*TasteProfile, error)
	GetRecommendations(ctx context.Context, agentID string) ([]model.ListeningSession, error)
	GetListeningSessions(ctx context.Context, agentID string) ([]model.ListeningSession, error)
}

type LogSongInput struct {
	Song   string
	Artist string
	Genre  string
	Mood   string
	Rating *float64
}

type DeleteResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TasteProfile is the read model returned by GetTasteProfile.
type TasteProfile struct {
	FavoriteGenres []string                 `json:"favoriteGenres"`
	TopMoods       []string                 `json:"topMoods"`
	TotalSongs     int                      `json:"totalSongs"`
	RecentSessions []model.ListeningSession `json:"recentSessions"`
	Insights       []string                 `json:"insights"`
}

// AgentOptions tunes windows and timeouts; zero values take the defaults below.
type AgentOptions struct {
	HistoryWindow       int
	RecentActivity      int
	RecommendationCount int
	GeneratorTimeout    time.Duration
	Clock               func() time.Time
	IDs                 IDGenerator
}

func (o AgentOptions) withDefaults() AgentOptions {
	if o.HistoryWindow <= 0 {
		o.HistoryWindow = 12
	}
	if o.RecentActivity <= 0 {
		o.RecentActivity = 3
	}
	if o.RecommendationCount <= 0 {
		o.RecommendationCount = 5
	}
	if o.GeneratorTimeout <= 0 {
		o.GeneratorTimeout = 30 * time.Second
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.IDs == nil {
		o.IDs = NewULIDGenerator()
	}
	return o
}

type musicAgentUC struct {
	states  repository.AgentStateRepository
	locker  repository.AgentLocker
	replies adapter.TextGenerator
	songs   adapter.SuggestionGenerator
	opts    AgentOptions
	log     *zerolog.Logger
}

func NewMusicAgentUseCase(
	states repository.AgentStateRepository,
	locker repository.AgentLocker,
	replies adapter.TextGenerator,
	songs adapter.SuggestionGenerator,
	opts AgentOptions,
	logger *zerolog.Logger,
) *musicAgentUC {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &musicAgentUC{
		states:  states,
		locker:  locker,
		replies: replies,
		songs:   songs,
		opts:    opts.withDefaults(),
		log:     logger,
	}
}

// ensureState loads the snapshot or builds a fresh one. It never saves.
func (u *musicAgentUC) ensureState(ctx context.Context, agentID string) (*model.AgentState, error) {
	st, err := u.states.Load(ctx, agentID)
	if errors.Is(err, domain.ErrNotFound) {
		return model.NewAgentState(u.opts.Clock()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load agent state: %w", err)
	}
	st.Normalize()
	return st, nil
}

// mutate runs fn between load and save while holding the agent lock.
// fn returning save=false skips persistence.
func (u *musicAgentUC) mutate(ctx context.Context, agentID string, fn func(st *model.AgentState) (save bool, err error)) error {
	ctx, release, err := u.locker.Acquire(ctx, agentID)
	if err != nil {
		return fmt.Errorf("acquire agent lock: %w", err)
	}
	defer release()

	st, err := u.ensureState(ctx, agentID)
	if err != nil {
		return err
	}
	save, err := fn(st)
	if err != nil || !save {
		return err
	}
	if err := u.states.Save(ctx, agentID, st); err != nil {
		return fmt.Errorf("save agent state: %w", err)
	}
	return nil
}

func (u *musicAgentUC) Chat(ctx context.Context, agentID, message string) (string, error) {
	ctx = logging.WithAgentID(ctx, agentID)
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "MusicAgent.Chat")()

	var reply string
	err := u.mutate(ctx, agentID, func(st *model.AgentState) (bool, error) {
		st.AddTurn(model.RoleUser, message)

		analysis := model.AnalyzeMusicTaste(st.ListeningSessions)
		summary := adapter.TasteSummary{
			TopGenres:      analysis.TopGenres,
			TopMoods:       analysis.TopMoods,
			SessionCount:   len(st.ListeningSessions),
			DiscoveredAt:   st.Profile.DiscoveredAt,
			RecentActivity: st.LastSessions(u.opts.RecentActivity),
		}
		reply = u.generateReply(ctx, log, summary, st.RecentTurns(u.opts.HistoryWindow))

		st.AddTurn(model.RoleAssistant, reply)
		st.ExtractMusicInfo(message)
		return true, nil
	})
	u.record("chat", err)
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (u *musicAgentUC) generateReply(ctx context.Context, log *zerolog.Logger, summary adapter.TasteSummary, history []model.ConversationTurn) string {
	if u.replies == nil {
		metrics.IncGeneratorFallback("reply")
		return ReplyFallback
	}
	gctx, cancel := context.WithTimeout(ctx, u.opts.GeneratorTimeout)
	defer cancel()

	// the generator must not alias the stored history
	window := make([]model.ConversationTurn, len(history))
	copy(window, history)

	text, err := u.replies.GenerateReply(gctx, summary, window)
	if err != nil {
		log.Warn().Err(err).Msg("reply generator failed, using fallback")
		metrics.IncGeneratorFallback("reply")
		return ReplyFallback
	}
	if strings.TrimSpace(text) == "" {
		return EmptyReplyFallback
	}
	return text
}

func (u *musicAgentUC) LogSong(ctx context.Context, agentID string, in LogSongInput) (*model.ListeningSession, error) {
	ctx = logging.WithAgentID(ctx, agentID)
	var session model.ListeningSession
	err := u.mutate(ctx, agentID, func(st *model.AgentState) (bool, error) {
		session = model.NewListeningSession(
			u.opts.IDs.NewID("session"),
			in.Song, in.Artist, in.Genre, in.Mood, in.Rating,
			u.opts.Clock(),
		)
		st.AddSession(session)
		return true, nil
	})
	u.record("log_song", err)
	if err != nil {
		return nil, err
	}
	logging.With(ctx, u.log).Debug().Str("session_id", session.ID).Str("genre", session.Genre).Msg("song logged")
	return &session, nil
}

func (u *musicAgentUC) DeleteSong(ctx context.Context, agentID, sessionID string) (DeleteResult, error) {
	ctx = logging.WithAgentID(ctx, agentID)
	res := DeleteResult{Success: false, Message: MsgSongNotFound}
	err := u.mutate(ctx, agentID, func(st *model.AgentState) (bool, error) {
		if !st.RemoveSession(sessionID) {
			return false, nil
		}
		res = DeleteResult{Success: true, Message: MsgSongDeleted}
		return true, nil
	})
	switch {
	case err != nil:
		u.record("delete_song", err)
		return DeleteResult{}, err
	case !res.Success:
		metrics.IncAgentOperation("delete_song", "not_found")
	default:
		u.record("delete_song", nil)
	}
	return res, nil
}

func (u *musicAgentUC) GetTasteProfile(ctx context.Context, agentID string) (*TasteProfile, error) {
	st, err := u.ensureState(ctx, agentID)
	u.record("get_profile", err)
	if err != nil {
		return nil, err
	}
	analysis := model.AnalyzeMusicTaste(st.ListeningSessions)
	return &TasteProfile{
		FavoriteGenres: analysis.TopGenres,
		TopMoods:       analysis.TopMoods,
		TotalSongs:     len(st.ListeningSessions),
		RecentSessions: st.RecentSessions(recentProfileSessions),
		Insights:       st.GenerateInsights(),
	}, nil
}

func (u *musicAgentUC) GetRecommendations(ctx context.Context, agentID string) ([]model.ListeningSession, error) {
	ctx = logging.WithAgentID(ctx, agentID)
	log := logging.With(ctx, u.log)

	st, err := u.ensureState(ctx, agentID)
	u.record("recommendations", err)
	if err != nil {
		return nil, err
	}

	genres := headOf(st.Profile.FavoriteGenres, recommendationFacets)
	moods := headOf(st.Profile.TopMoods, recommendationFacets)
	if len(genres) == 0 && len(moods) == 0 {
		return []model.ListeningSession{}, nil
	}
	if u.songs == nil {
		metrics.IncGeneratorFallback("suggestions")
		return []model.ListeningSession{}, nil
	}

	gctx, cancel := context.WithTimeout(ctx, u.opts.GeneratorTimeout)
	defer cancel()
	suggestions, err := u.songs.SuggestSongs(gctx, genres, moods, u.opts.RecommendationCount)
	if err != nil {
		log.Warn().Err(err).Msg("suggestion generator failed, returning no recommendations")
		metrics.IncGeneratorFallback("suggestions")
		return []model.ListeningSession{}, nil
	}

	now := u.opts.Clock()
	recs := make([]model.ListeningSession, 0, len(suggestions))
	for _, s := range suggestions {
		recs = append(recs, model.NewListeningSession(u.opts.IDs.NewID("rec"), s.Song, s.Artist, s.Genre, s.Mood, nil, now))
	}
	return recs, nil
}

func (u *musicAgentUC) GetListeningSessions(ctx context.Context, agentID string) ([]model.ListeningSession, error) {
	st, err := u.ensureState(ctx, agentID)
	u.record("list_sessions", err)
	if err != nil {
		return nil, err
	}
	return st.RecentSessions(0), nil
}

func (u *musicAgentUC) record(op string, err error) {
	if err != nil {
		metrics.IncAgentOperation(op, "error")
		return
	}
	metrics.IncAgentOperation(op, "ok")
}

func headOf(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}
