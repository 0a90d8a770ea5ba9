package model

import (
	"strings"
	"time"
)

// ListeningSession is a song the user logged. Sessions are never mutated
// after creation; they leave the log only through deletion.
type ListeningSession struct {
	ID        string    `json:"id"`
	Song      string    `json:"song"`
	Artist    string    `json:"artist"`
	Genre     string    `json:"genre"`
	Mood      string    `json:"mood"`
	Rating    *float64  `json:"rating,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewListeningSession builds a session with genre and mood normalized to lowercase.
func NewListeningSession(id, song, artist, genre, mood string, rating *float64, at time.Time) ListeningSession {
	return ListeningSession{
		ID:        id,
		Song:      song,
		Artist:    artist,
		Genre:     strings.ToLower(genre),
		Mood:      strings.ToLower(mood),
		Rating:    rating,
		Timestamp: at.UTC(),
	}
}

// SongSuggestion is one record returned by a suggestion generator.
type SongSuggestion struct {
	Song   string `json:"song"`
	Artist string `json:"artist"`
	Genre  string `json:"genre"`
	Mood   string `json:"mood"`
}
