//go:build !integration

package model

import (
	"fmt"
	"reflect"
	"slices"
	"testing"
	"time"
)

func session(id, genre, mood string) ListeningSession {
	return NewListeningSession(id, "song-"+id, "artist-"+id, genre, mood, nil, time.Now())
}

// --- Aggregation ---

func TestAnalyzeMusicTaste(t *testing.T) {
	t.Run("first-seen order breaks ties", func(t *testing.T) {
		sessions := []ListeningSession{
			NewListeningSession("1", "Blue", "X", "Jazz", "Chill", nil, time.Now()),
			NewListeningSession("2", "Red", "Y", "Jazz", "Energetic", nil, time.Now()),
		}
		got := AnalyzeMusicTaste(sessions)
		if !reflect.DeepEqual(got.TopGenres, []string{"jazz"}) {
			t.Errorf("expected top genres [jazz], got %v", got.TopGenres)
		}
		if !reflect.DeepEqual(got.TopMoods, []string{"chill", "energetic"}) {
			t.Errorf("expected top moods [chill energetic], got %v", got.TopMoods)
		}
	})

	t.Run("descending count, capped at three", func(t *testing.T) {
		sessions := []ListeningSession{
			session("1", "pop", "happy"),
			session("2", "rock", "sad"),
			session("3", "rock", "sad"),
			session("4", "jazz", "chill"),
			session("5", "folk", "angry"),
			session("6", "jazz", "sad"),
			session("7", "rock", "happy"),
		}
		got := AnalyzeMusicTaste(sessions)
		if want := []string{"rock", "jazz", "pop"}; !reflect.DeepEqual(got.TopGenres, want) {
			t.Errorf("expected %v, got %v", want, got.TopGenres)
		}
		if want := []string{"sad", "happy", "chill"}; !reflect.DeepEqual(got.TopMoods, want) {
			t.Errorf("expected %v, got %v", want, got.TopMoods)
		}
	})

	t.Run("empty log", func(t *testing.T) {
		got := AnalyzeMusicTaste(nil)
		if got.TopGenres == nil || len(got.TopGenres) != 0 || len(got.TopMoods) != 0 {
			t.Errorf("expected empty non-nil rankings, got %#v", got)
		}
	})
}

// --- Extraction ---

func TestExtractMusicInfo(t *testing.T) {
	t.Run("vocabulary scan order", func(t *testing.T) {
		s := NewAgentState(time.Now())
		s.ExtractMusicInfo("I love upbeat indie rock")
		if want := []string{"rock", "indie"}; !reflect.DeepEqual(s.Profile.FavoriteGenres, want) {
			t.Errorf("expected genres %v, got %v", want, s.Profile.FavoriteGenres)
		}
		if want := []string{"upbeat"}; !reflect.DeepEqual(s.Profile.TopMoods, want) {
			t.Errorf("expected moods %v, got %v", want, s.Profile.TopMoods)
		}
	})

	t.Run("case insensitive and no duplicates", func(t *testing.T) {
		s := NewAgentState(time.Now())
		s.ExtractMusicInfo("JAZZ makes me happy")
		s.ExtractMusicInfo("more jazz, still Happy")
		if want := []string{"jazz"}; !reflect.DeepEqual(s.Profile.FavoriteGenres, want) {
			t.Errorf("expected %v, got %v", want, s.Profile.FavoriteGenres)
		}
		if want := []string{"happy"}; !reflect.DeepEqual(s.Profile.TopMoods, want) {
			t.Errorf("expected %v, got %v", want, s.Profile.TopMoods)
		}
	})

	t.Run("cap of ten", func(t *testing.T) {
		s := NewAgentState(time.Now())
		for i := 0; i < MaxProfileFacets; i++ {
			s.Profile.FavoriteGenres = append(s.Profile.FavoriteGenres, fmt.Sprintf("g%d", i))
		}
		s.ExtractMusicInfo("some reggae please")
		if len(s.Profile.FavoriteGenres) != MaxProfileFacets {
			t.Fatalf("expected %d genres, got %d", MaxProfileFacets, len(s.Profile.FavoriteGenres))
		}
		if slices.Contains(s.Profile.FavoriteGenres, "reggae") {
			t.Error("did not expect reggae to be added past the cap")
		}
	})
}

// --- Session log ---

func TestAddSession(t *testing.T) {
	s := NewAgentState(time.Now())
	s.AddSession(NewListeningSession("1", "Blue", "X", "Jazz", "Chill", nil, time.Now()))
	s.AddSession(NewListeningSession("2", "Green", "X", "JAZZ", "chill", nil, time.Now()))

	if want := []string{"jazz"}; !reflect.DeepEqual(s.Profile.FavoriteGenres, want) {
		t.Errorf("expected %v, got %v", want, s.Profile.FavoriteGenres)
	}
	if want := []string{"chill"}; !reflect.DeepEqual(s.Profile.TopMoods, want) {
		t.Errorf("expected %v, got %v", want, s.Profile.TopMoods)
	}

	for i := 0; i < 12; i++ {
		s.AddSession(session(fmt.Sprintf("x%d", i), fmt.Sprintf("genre%d", i), "chill"))
	}
	if len(s.Profile.FavoriteGenres) != MaxProfileFacets {
		t.Errorf("expected genres capped at %d, got %d", MaxProfileFacets, len(s.Profile.FavoriteGenres))
	}
}

func TestRemoveSession(t *testing.T) {
	t.Run("recomputes distinct facets without cap", func(t *testing.T) {
		s := NewAgentState(time.Now())
		for i := 0; i < 12; i++ {
			s.AddSession(session(fmt.Sprintf("s%d", i), fmt.Sprintf("genre%d", i), "calm"))
		}
		s.ExtractMusicInfo("i like metal")
		if ok := s.RemoveSession("s0"); !ok {
			t.Fatal("expected removal to succeed")
		}
		if len(s.Profile.FavoriteGenres) != 11 {
			t.Fatalf("expected 11 distinct genres after recompute, got %d: %v", len(s.Profile.FavoriteGenres), s.Profile.FavoriteGenres)
		}
		if slices.Contains(s.Profile.FavoriteGenres, "genre0") || slices.Contains(s.Profile.FavoriteGenres, "metal") {
			t.Errorf("recompute kept facets absent from the log: %v", s.Profile.FavoriteGenres)
		}
		if want := []string{"calm"}; !reflect.DeepEqual(s.Profile.TopMoods, want) {
			t.Errorf("expected moods %v, got %v", want, s.Profile.TopMoods)
		}
	})

	t.Run("unknown id leaves state untouched", func(t *testing.T) {
		s := NewAgentState(time.Now())
		s.AddSession(session("a", "pop", "happy"))
		s.ExtractMusicInfo("rock")
		before := *s
		beforeGenres := slices.Clone(s.Profile.FavoriteGenres)

		if s.RemoveSession("missing") {
			t.Fatal("expected removal of unknown id to fail")
		}
		if len(s.ListeningSessions) != len(before.ListeningSessions) {
			t.Error("session log changed")
		}
		if !reflect.DeepEqual(s.Profile.FavoriteGenres, beforeGenres) {
			t.Errorf("profile changed: %v -> %v", beforeGenres, s.Profile.FavoriteGenres)
		}
	})
}

func TestRecentSessions(t *testing.T) {
	s := NewAgentState(time.Now())
	for i := 0; i < 12; i++ {
		s.AddSession(session(fmt.Sprintf("%02d", i), "pop", "happy"))
	}

	recent := s.RecentSessions(10)
	if len(recent) != 10 {
		t.Fatalf("expected 10 sessions, got %d", len(recent))
	}
	if recent[0].ID != "11" || recent[9].ID != "02" {
		t.Errorf("expected newest first 11..02, got %s..%s", recent[0].ID, recent[9].ID)
	}

	all := s.RecentSessions(0)
	if len(all) != 12 || all[0].ID != "11" || all[11].ID != "00" {
		t.Errorf("expected full log newest first, got %d entries", len(all))
	}
	if s.ListeningSessions[0].ID != "00" {
		t.Error("RecentSessions must not reorder the stored log")
	}
}

func TestRecentTurns(t *testing.T) {
	s := NewAgentState(time.Now())
	for i := 0; i < 15; i++ {
		s.AddTurn(RoleUser, fmt.Sprintf("m%d", i))
	}
	got := s.RecentTurns(12)
	if len(got) != 12 || got[0].Content != "m3" || got[11].Content != "m14" {
		t.Errorf("unexpected window: %v", got)
	}
}

// --- Insights ---

func TestGenerateInsights(t *testing.T) {
	s := NewAgentState(time.Now())
	if got := s.GenerateInsights(); !reflect.DeepEqual(got, []string{"Start logging songs to discover your music taste!"}) {
		t.Errorf("unexpected empty-state insights: %v", got)
	}

	s.AddSession(session("1", "jazz", "chill"))
	want := []string{"Your top genre is jazz", "You often listen to chill music"}
	if got := s.GenerateInsights(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	for i := 2; i <= 10; i++ {
		s.AddSession(session(fmt.Sprint(i), "jazz", "chill"))
	}
	got := s.GenerateInsights()
	if len(got) != 3 || got[2] != "You've logged 10 songs - your taste is taking shape!" {
		t.Errorf("expected milestone insight, got %v", got)
	}
}

func TestNewListeningSession(t *testing.T) {
	r := 4.5
	ls := NewListeningSession("id", "Song", "Artist", "Hip Hop", "UPBEAT", &r, time.Now())
	if ls.Genre != "hip hop" || ls.Mood != "upbeat" {
		t.Errorf("expected lowercase facets, got %q/%q", ls.Genre, ls.Mood)
	}
	if ls.Song != "Song" || ls.Artist != "Artist" {
		t.Error("song and artist must be kept as supplied")
	}
	if ls.Rating == nil || *ls.Rating != 4.5 {
		t.Error("expected rating to be kept")
	}
}
