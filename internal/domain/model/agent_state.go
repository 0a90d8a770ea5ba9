package model

import (
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is one message of the dialogue history.
type ConversationTurn struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

// MusicPreference is reserved for explicit preference records. Nothing writes it yet.
type MusicPreference struct {
	Genre     string    `json:"genre"`
	Artists   []string  `json:"artists"`
	Mood      string    `json:"mood"`
	Timestamp time.Time `json:"timestamp"`
}

// Profile holds the accumulated taste facets of one agent.
type Profile struct {
	FavoriteGenres []string  `json:"favoriteGenres"`
	TopMoods       []string  `json:"topMoods"`
	DiscoveredAt   time.Time `json:"discoveredAt"`
}

// AgentState is the aggregate root persisted as a single snapshot per agent identity.
type AgentState struct {
	Preferences         []MusicPreference  `json:"preferences"`
	ListeningSessions   []ListeningSession `json:"listeningSessions"`
	ConversationHistory []ConversationTurn `json:"conversationHistory"`
	Profile             Profile            `json:"profile"`
}

func NewAgentState(now time.Time) *AgentState {
	return &AgentState{
		Preferences:         []MusicPreference{},
		ListeningSessions:   []ListeningSession{},
		ConversationHistory: []ConversationTurn{},
		Profile: Profile{
			FavoriteGenres: []string{},
			TopMoods:       []string{},
			DiscoveredAt:   now.UTC(),
		},
	}
}

// Normalize replaces nil slices left by older or hand-written snapshots.
func (s *AgentState) Normalize() {
	if s.Preferences == nil {
		s.Preferences = []MusicPreference{}
	}
	if s.ListeningSessions == nil {
		s.ListeningSessions = []ListeningSession{}
	}
	if s.ConversationHistory == nil {
		s.ConversationHistory = []ConversationTurn{}
	}
	if s.Profile.FavoriteGenres == nil {
		s.Profile.FavoriteGenres = []string{}
	}
	if s.Profile.TopMoods == nil {
		s.Profile.TopMoods = []string{}
	}
}

func (s *AgentState) AddTurn(role, content string) {
	s.ConversationHistory = append(s.ConversationHistory, ConversationTurn{Role: role, Content: content})
}

// RecentTurns returns the last n turns in chronological order.
func (s *AgentState) RecentTurns(n int) []ConversationTurn {
	if n <= 0 || len(s.ConversationHistory) <= n {
		return s.ConversationHistory
	}
	return s.ConversationHistory[len(s.ConversationHistory)-n:]
}

// AddSession appends a session and grows the profile with its genre and mood.
func (s *AgentState) AddSession(session ListeningSession) {
	s.ListeningSessions = append(s.ListeningSessions, session)
	s.Profile.addGenre(session.Genre)
	s.Profile.addMood(session.Mood)
}

// RemoveSession drops the session with the given id and, when something was
// removed, rebuilds the profile facets from the remaining log.
func (s *AgentState) RemoveSession(id string) bool {
	kept := make([]ListeningSession, 0, len(s.ListeningSessions))
	for _, ls := range s.ListeningSessions {
		if ls.ID != id {
			kept = append(kept, ls)
		}
	}
	if len(kept) == len(s.ListeningSessions) {
		return false
	}
	s.ListeningSessions = kept
	s.RecalculateProfile()
	return true
}

// LastSessions returns the last n sessions in logging order.
func (s *AgentState) LastSessions(n int) []ListeningSession {
	if n <= 0 || len(s.ListeningSessions) <= n {
		return s.ListeningSessions
	}
	return s.ListeningSessions[len(s.ListeningSessions)-n:]
}

// RecentSessions returns up to n sessions, most recent first. n <= 0 returns all of them.
func (s *AgentState) RecentSessions(n int) []ListeningSession {
	src := s.LastSessions(n)
	out := make([]ListeningSession, len(src))
	for i, ls := range src {
		out[len(src)-1-i] = ls
	}
	return out
}
