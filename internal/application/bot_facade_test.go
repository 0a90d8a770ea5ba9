//go:build !integration

package application_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"music-taste-agent/internal/application"
	"music-taste-agent/internal/domain"
	"music-taste-agent/internal/domain/model"
	"music-taste-agent/internal/domain/ports/adapter"
	"music-taste-agent/internal/infra/i18n"
	"music-taste-agent/internal/infra/memory"
	"music-taste-agent/internal/usecase"
)

type stubReplies struct{ reply string }

func (s stubReplies) GenerateReply(ctx context.Context, _ adapter.TasteSummary, _ []model.ConversationTurn) (string, error) {
	return s.reply, nil
}

type stubSongs struct {
	out []model.SongSuggestion
	err error
}

func (s stubSongs) SuggestSongs(ctx context.Context, genres, moods []string, count int) ([]model.SongSuggestion, error) {
	return s.out, s.err
}

func newFacade(t *testing.T, songs stubSongs) *application.BotFacade {
	t.Helper()
	tr, err := i18n.Default()
	if err != nil {
		t.Fatalf("translator: %v", err)
	}
	nop := zerolog.Nop()
	uc := usecase.NewMusicAgentUseCase(
		memory.NewStateRepo(),
		memory.NewLocker(),
		stubReplies{reply: "Nice pick!"},
		songs,
		usecase.AgentOptions{},
		&nop,
	)
	return application.NewBotFacade(uc, tr)
}

func TestParseLogArgs(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		wantErr bool
		rating  *float64
	}{
		{"four fields", "So What | Miles Davis | jazz | chill", false, nil},
		{"with rating", "So What|Miles Davis|jazz|chill|4.5", false, ptr(4.5)},
		{"trailing empty rating", "a | b | c | d | ", false, nil},
		{"too few", "a | b | c", true, nil},
		{"too many", "a|b|c|d|5|x", true, nil},
		{"empty field", "a |  | c | d", true, nil},
		{"bad rating", "a|b|c|d|great", true, nil},
		{"empty", "", true, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := application.ParseLogArgs(tc.in)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrInvalidArgument) {
					t.Fatalf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Song == "" || got.Song != strings.TrimSpace(got.Song) || got.Mood != strings.TrimSpace(got.Mood) {
				t.Errorf("fields not trimmed: %#v", got)
			}
			switch {
			case tc.rating == nil && got.Rating != nil:
				t.Errorf("expected no rating, got %v", *got.Rating)
			case tc.rating != nil && (got.Rating == nil || *got.Rating != *tc.rating):
				t.Errorf("expected rating %v, got %v", *tc.rating, got.Rating)
			}
		})
	}
}

func TestFacadeFlow(t *testing.T) {
	ctx := context.Background()
	f := newFacade(t, stubSongs{out: []model.SongSuggestion{{Song: "Blue in Green", Artist: "Bill Evans", Genre: "jazz", Mood: "calm"}}})
	const chat int64 = 42

	text, err := f.HandleLog(ctx, chat, "So What | Miles Davis | Jazz | Chill | 5")
	if err != nil {
		t.Fatalf("HandleLog: %v", err)
	}
	if !strings.Contains(text, "So What") || !strings.Contains(text, "jazz") {
		t.Errorf("unexpected log reply %q", text)
	}

	profile, err := f.HandleProfile(ctx, chat)
	if err != nil {
		t.Fatalf("HandleProfile: %v", err)
	}
	for _, want := range []string{"Favorite genres: jazz", "Top moods: chill", "Songs logged: 1", "Your top genre is jazz"} {
		if !strings.Contains(profile, want) {
			t.Errorf("profile missing %q:\n%s", want, profile)
		}
	}

	listing, sessions, err := f.HandleSessions(ctx, chat)
	if err != nil {
		t.Fatalf("HandleSessions: %v", err)
	}
	if len(sessions) != 1 || !strings.Contains(listing, "So What by Miles Davis (jazz, chill) ★5") {
		t.Fatalf("unexpected listing %q (%d sessions)", listing, len(sessions))
	}

	recs, err := f.HandleRecommendations(ctx, chat)
	if err != nil {
		t.Fatalf("HandleRecommendations: %v", err)
	}
	if !strings.Contains(recs, "Blue in Green by Bill Evans") {
		t.Errorf("unexpected recs %q", recs)
	}

	reply, err := f.HandleChatMessage(ctx, chat, "I love jazz")
	if err != nil || reply != "Nice pick!" {
		t.Fatalf("unexpected chat reply %q, %v", reply, err)
	}

	if text, _ := f.HandleDelete(ctx, chat, "nope"); text != "Song not found." {
		t.Errorf("unexpected missing-delete reply %q", text)
	}
	if text, _ := f.HandleDelete(ctx, chat, sessions[0].ID); text != "🗑 Song deleted successfully." {
		t.Errorf("unexpected delete reply %q", text)
	}
	if text, _ := f.HandleDelete(ctx, chat, " "); !strings.HasPrefix(text, "Usage: /delete") {
		t.Errorf("expected usage, got %q", text)
	}

	if listing, _, _ := f.HandleSessions(ctx, chat); listing != "No songs logged yet. Try /log." {
		t.Errorf("expected empty listing, got %q", listing)
	}
}

func TestFacadeUsageAndIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFacade(t, stubSongs{})

	if text, err := f.HandleLog(ctx, 1, "only | three | fields"); err != nil || !strings.HasPrefix(text, "Usage: /log") {
		t.Errorf("expected usage text, got %q, %v", text, err)
	}
	if text, _ := f.HandleLog(ctx, 1, "a|b|c|d|loud"); !strings.Contains(text, `"loud"`) {
		t.Errorf("expected rating error, got %q", text)
	}

	if _, err := f.HandleLog(ctx, 1, "a|b|rock|happy"); err != nil {
		t.Fatal(err)
	}
	if _, sessions, _ := f.HandleSessions(ctx, 2); len(sessions) != 0 {
		t.Error("chats must not share agent state")
	}
	if text, _ := f.HandleRecommendations(ctx, 2); text != "Log a few songs or tell me what you like, then ask again." {
		t.Errorf("unexpected empty recs text %q", text)
	}
}

func TestHandleSessionsTruncates(t *testing.T) {
	ctx := context.Background()
	f := newFacade(t, stubSongs{})
	for i := 0; i < 25; i++ {
		if _, err := f.HandleLog(ctx, 7, fmt.Sprintf("s%d|a|pop|happy", i)); err != nil {
			t.Fatal(err)
		}
	}
	text, shown, err := f.HandleSessions(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(shown) != 20 || shown[0].Song != "s24" {
		t.Fatalf("expected 20 newest sessions, got %d starting at %q", len(shown), shown[0].Song)
	}
	if !strings.Contains(text, "...and 5 more.") {
		t.Errorf("expected overflow note in %q", text)
	}
}

func TestAgentIDForChat(t *testing.T) {
	if got := application.AgentIDForChat(-100123); got != "tg_-100123" {
		t.Errorf("unexpected agent id %q", got)
	}
}

func ptr(f float64) *float64 { return &f }
