package adapter

import (
	"context"
	"time"

	"music-taste-agent/internal/domain/model"
)

// TasteSummary is the profile context handed to the reply generator.
type TasteSummary struct {
	TopGenres      []string
	TopMoods       []string
	SessionCount   int
	DiscoveredAt   time.Time
	RecentActivity []model.ListeningSession
}

// TextGenerator produces a free-text assistant reply from the profile summary
// and the recent conversation window.
type TextGenerator interface {
	GenerateReply(ctx context.Context, summary TasteSummary, history []model.ConversationTurn) (string, error)
}

// SuggestionGenerator produces song suggestions for the given taste facets.
// Unparseable provider output is reported as domain.ErrMalformedSuggestions.
type SuggestionGenerator interface {
	SuggestSongs(ctx context.Context, genres, moods []string, count int) ([]model.SongSuggestion, error)
}
