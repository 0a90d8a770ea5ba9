// Package cli implements the tastectl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"music-taste-agent/internal/app"
	"music-taste-agent/internal/application"
	"music-taste-agent/internal/config"
	"music-taste-agent/internal/domain/model"
	"music-taste-agent/internal/infra/logging"
	"music-taste-agent/internal/usecase"
)

// Session is what a command needs to run: the use case, the agent it targets
// and a release func for the underlying store.
type Session struct {
	Agent   usecase.MusicAgentUseCase
	AgentID string
	Close   func()
}

// Opener builds a Session from the --config path and --agent flag.
type Opener func(ctx context.Context, cfgPath, agentID string) (*Session, error)

type rootOptions struct {
	cfgPath string
	agentID string
	format  string
	open    Opener
}

// NewRootCmd returns the command tree. open is injectable for tests.
func NewRootCmd(open Opener) *cobra.Command {
	opts := &rootOptions{open: open}
	root := &cobra.Command{
		Use:           "tastectl",
		Short:         "Operate music taste agents from the command line",
		Long:          "Drive the music taste agent against the configured store. Output is JSON unless --format text is given.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.cfgPath, "config", "c", "config.yaml", "Path to config yaml")
	root.PersistentFlags().StringVarP(&opts.agentID, "agent", "a", "", "Agent id (default: agent.default_id)")
	root.PersistentFlags().StringVarP(&opts.format, "format", "f", "json", "Output format: json or text")

	root.AddCommand(
		newChatCmd(opts),
		newLogCmd(opts),
		newDeleteCmd(opts),
		newProfileCmd(opts),
		newSessionsCmd(opts),
		newRecsCmd(opts),
	)
	return root
}

// Execute runs tastectl with the real config-driven opener.
func Execute(ctx context.Context) error {
	return NewRootCmd(OpenFromConfig).ExecuteContext(ctx)
}

// OpenFromConfig loads the config file and builds the full runtime. Logs go to
// stderr so stdout stays machine readable.
func OpenFromConfig(ctx context.Context, cfgPath, agentID string) (*Session, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewWithWriter(cfg.Log, cfg.Runtime.Dev, os.Stderr)
	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if agentID == "" {
		agentID = cfg.Agent.DefaultID
	}
	return &Session{Agent: rt.Agent, AgentID: agentID, Close: rt.Close}, nil
}

// run opens a session, hands it to fn and prints whatever fn returns.
func (o *rootOptions) run(cmd *cobra.Command, fn func(ctx context.Context, s *Session) (any, error)) error {
	if o.format != "json" && o.format != "text" {
		return fmt.Errorf("unknown format %q", o.format)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := o.open(ctx, o.cfgPath, o.agentID)
	if err != nil {
		return err
	}
	if s.Close != nil {
		defer s.Close()
	}
	out, err := fn(ctx, s)
	if err != nil {
		return err
	}
	if o.format == "text" {
		return writeText(cmd.OutOrStdout(), out)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeText(w io.Writer, v any) error {
	var b strings.Builder
	switch t := v.(type) {
	case chatOutput:
		b.WriteString(t.Response + "\n")
	case logOutput:
		b.WriteString(t.Session.ID + "  " + application.FormatSession(*t.Session) + "\n")
	case usecase.DeleteResult:
		b.WriteString(t.Message + "\n")
	case *usecase.TasteProfile:
		fmt.Fprintf(&b, "genres: %s\nmoods: %s\nsongs: %d\n", strings.Join(t.FavoriteGenres, ", "), strings.Join(t.TopMoods, ", "), t.TotalSongs)
		for _, in := range t.Insights {
			b.WriteString("- " + in + "\n")
		}
	case sessionsOutput:
		writeSessions(&b, t.Sessions)
	case recsOutput:
		writeSessions(&b, t.Recommendations)
	default:
		return fmt.Errorf("no text rendering for %T", v)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeSessions(b *strings.Builder, list []model.ListeningSession) {
	for _, s := range list {
		b.WriteString(s.ID + "  " + application.FormatSession(s) + "\n")
	}
}
