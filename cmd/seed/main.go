package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"music-taste-agent/internal/app"
	"music-taste-agent/internal/config"
	"music-taste-agent/internal/infra/logging"
	"music-taste-agent/internal/usecase"
)

func main() {
	agentFlag := flag.String("agent", "", "agent id to seed (default: agent.default_id)")

	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	agentID := *agentFlag
	if agentID == "" {
		agentID = cfg.Agent.DefaultID
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}
	defer rt.Close()

	// If the agent already has history, do nothing
	existing, err := rt.Agent.GetListeningSessions(ctx, agentID)
	if err != nil {
		log.Fatalf("list sessions: %v", err)
	}
	if len(existing) > 0 {
		fmt.Printf("%d sessions already logged for %s. No changes.\n", len(existing), agentID)
		for _, s := range existing {
			fmt.Printf("  - %s by %s (%s, %s)\n", s.Song, s.Artist, s.Genre, s.Mood)
		}
		return
	}

	rating := func(v float64) *float64 { return &v }
	seed := []usecase.LogSongInput{
		{Song: "So What", Artist: "Miles Davis", Genre: "Jazz", Mood: "Chill", Rating: rating(5)},
		{Song: "Take Five", Artist: "Dave Brubeck", Genre: "Jazz", Mood: "Focused", Rating: rating(4)},
		{Song: "Teardrop", Artist: "Massive Attack", Genre: "Trip-Hop", Mood: "Melancholy"},
		{Song: "Everything In Its Right Place", Artist: "Radiohead", Genre: "Alternative", Mood: "Chill", Rating: rating(4.5)},
		{Song: "Midnight City", Artist: "M83", Genre: "Electronic", Mood: "Energetic"},
	}

	for _, in := range seed {
		s, err := rt.Agent.LogSong(ctx, agentID, in)
		if err != nil {
			log.Fatalf("log %q: %v", in.Song, err)
		}
		fmt.Printf("seeded: %s by %s (id=%s, genre=%s, mood=%s)\n", s.Song, s.Artist, s.ID, s.Genre, s.Mood)
	}

	fmt.Println("✅ Seeding complete.")
}
