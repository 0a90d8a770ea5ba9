package model

import (
	"fmt"
	"slices"
	"strings"
)

// MaxProfileFacets caps FavoriteGenres and TopMoods on the append paths.
const MaxProfileFacets = 10

// topFacets is how many entries AnalyzeMusicTaste keeps per facet.
const topFacets = 3

// Fixed vocabularies scanned by ExtractMusicInfo, in scan order.
var (
	GenreVocabulary = []string{
		"pop", "rock", "hip hop", "rap", "indie", "electronic", "jazz", "classical",
		"country", "r&b", "metal", "folk", "punk", "soul", "blues", "reggae",
	}
	MoodVocabulary = []string{
		"happy", "sad", "energetic", "chill", "romantic", "angry", "nostalgic",
		"upbeat", "melancholic", "peaceful", "intense",
	}
)

// TasteAnalysis is the frequency ranking of a session log.
type TasteAnalysis struct {
	TopGenres []string `json:"topGenres"`
	TopMoods  []string `json:"topMoods"`
}

// AnalyzeMusicTaste ranks genres and moods by descending count. Equal counts
// keep the order in which the values were first seen.
func AnalyzeMusicTaste(sessions []ListeningSession) TasteAnalysis {
	genres := newTally()
	moods := newTally()
	for _, s := range sessions {
		genres.add(s.Genre)
		moods.add(s.Mood)
	}
	return TasteAnalysis{
		TopGenres: genres.top(topFacets),
		TopMoods:  moods.top(topFacets),
	}
}

type tally struct {
	order  []string
	counts map[string]int
}

func newTally() *tally {
	return &tally{counts: map[string]int{}}
}

func (t *tally) add(v string) {
	if _, ok := t.counts[v]; !ok {
		t.order = append(t.order, v)
	}
	t.counts[v]++
}

func (t *tally) top(n int) []string {
	ranked := slices.Clone(t.order)
	slices.SortStableFunc(ranked, func(a, b string) int {
		return t.counts[b] - t.counts[a]
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	if ranked == nil {
		return []string{}
	}
	return ranked
}

// ExtractMusicInfo scans a free-text message for known genres and moods and
// appends the new ones to the profile, subject to MaxProfileFacets.
func (s *AgentState) ExtractMusicInfo(message string) {
	lower := strings.ToLower(message)
	for _, g := range GenreVocabulary {
		if strings.Contains(lower, g) {
			s.Profile.addGenre(g)
		}
	}
	for _, m := range MoodVocabulary {
		if strings.Contains(lower, m) {
			s.Profile.addMood(m)
		}
	}
}

func (p *Profile) addGenre(g string) {
	p.FavoriteGenres = appendCapped(p.FavoriteGenres, g)
}

func (p *Profile) addMood(m string) {
	p.TopMoods = appendCapped(p.TopMoods, m)
}

func appendCapped(list []string, v string) []string {
	if slices.Contains(list, v) || len(list) >= MaxProfileFacets {
		return list
	}
	return append(list, v)
}

// RecalculateProfile replaces the profile facets with the distinct genres and
// moods present in the session log. Unlike the append paths it applies no cap.
func (s *AgentState) RecalculateProfile() {
	genres := []string{}
	moods := []string{}
	for _, ls := range s.ListeningSessions {
		if !slices.Contains(genres, ls.Genre) {
			genres = append(genres, ls.Genre)
		}
		if !slices.Contains(moods, ls.Mood) {
			moods = append(moods, ls.Mood)
		}
	}
	s.Profile.FavoriteGenres = genres
	s.Profile.TopMoods = moods
}

// GenerateInsights returns the human-readable observations shown with the profile.
func (s *AgentState) GenerateInsights() []string {
	if len(s.ListeningSessions) == 0 {
		return []string{"Start logging songs to discover your music taste!"}
	}

	insights := []string{}
	analysis := AnalyzeMusicTaste(s.ListeningSessions)
	if len(analysis.TopGenres) > 0 {
		insights = append(insights, fmt.Sprintf("Your top genre is %s", analysis.TopGenres[0]))
	}
	if len(analysis.TopMoods) > 0 {
		insights = append(insights, fmt.Sprintf("You often listen to %s music", analysis.TopMoods[0]))
	}
	if n := len(s.ListeningSessions); n >= 10 {
		insights = append(insights, fmt.Sprintf("You've logged %d songs - your taste is taking shape!", n))
	}
	return insights
}
