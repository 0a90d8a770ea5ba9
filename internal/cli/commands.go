package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"music-taste-agent/internal/domain"
	"music-taste-agent/internal/domain/model"
	"music-taste-agent/internal/usecase"
)

type chatOutput struct {
	Response string `json:"response"`
}

type logOutput struct {
	Session *model.ListeningSession `json:"session"`
}

type sessionsOutput struct {
	Sessions []model.ListeningSession `json:"sessions"`
}

type recsOutput struct {
	Recommendations []model.ListeningSession `json:"recommendations"`
}

func newChatCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a chat message to the agent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := strings.TrimSpace(strings.Join(args, " "))
			if msg == "" {
				return fmt.Errorf("%w: message is required", domain.ErrInvalidArgument)
			}
			return o.run(cmd, func(ctx context.Context, s *Session) (any, error) {
				reply, err := s.Agent.Chat(ctx, s.AgentID, msg)
				return chatOutput{Response: reply}, err
			})
		},
	}
}

func newLogCmd(o *rootOptions) *cobra.Command {
	var in usecase.LogSongInput
	var rating float64
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Log a listening session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for name, v := range map[string]string{"song": in.Song, "artist": in.Artist, "genre": in.Genre, "mood": in.Mood} {
				if strings.TrimSpace(v) == "" {
					return fmt.Errorf("%w: --%s is required", domain.ErrInvalidArgument, name)
				}
			}
			if cmd.Flags().Changed("rating") {
				r := rating
				in.Rating = &r
			}
			return o.run(cmd, func(ctx context.Context, s *Session) (any, error) {
				session, err := s.Agent.LogSong(ctx, s.AgentID, in)
				return logOutput{Session: session}, err
			})
		},
	}
	cmd.Flags().StringVar(&in.Song, "song", "", "Song title (required)")
	cmd.Flags().StringVar(&in.Artist, "artist", "", "Artist (required)")
	cmd.Flags().StringVar(&in.Genre, "genre", "", "Genre (required)")
	cmd.Flags().StringVar(&in.Mood, "mood", "", "Mood (required)")
	cmd.Flags().Float64Var(&rating, "rating", 0, "Optional rating")
	return cmd
}

func newDeleteCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [session-id]",
		Short: "Delete a logged session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, s *Session) (any, error) {
				return s.Agent.DeleteSong(ctx, s.AgentID, args[0])
			})
		},
	}
}

func newProfileCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the taste profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, s *Session) (any, error) {
				return s.Agent.GetTasteProfile(ctx, s.AgentID)
			})
		},
	}
}

func newSessionsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List logged sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, s *Session) (any, error) {
				list, err := s.Agent.GetListeningSessions(ctx, s.AgentID)
				if list == nil {
					list = []model.ListeningSession{}
				}
				return sessionsOutput{Sessions: list}, err
			})
		},
	}
}

func newRecsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recs",
		Short: "Ask for song recommendations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, s *Session) (any, error) {
				list, err := s.Agent.GetRecommendations(ctx, s.AgentID)
				if list == nil {
					list = []model.ListeningSession{}
				}
				return recsOutput{Recommendations: list}, err
			})
		},
	}
}
