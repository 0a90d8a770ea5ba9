package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"music-taste-agent/internal/config"
	"music-taste-agent/internal/domain"
	"music-taste-agent/internal/domain/model"
	"music-taste-agent/internal/infra/logging"
	"music-taste-agent/internal/usecase"
)

const (
	msgNotFound = "Not found"
	msgInternal = "Internal server error"

	maxBodyBytes = 64 << 10
)

// Server maps the agent operations onto JSON routes under /api.
type Server struct {
	uc        usecase.MusicAgentUseCase
	auth      *AuthManager
	cfg       config.HTTPConfig
	defaultID string
	log       *zerolog.Logger
}

// NewServer builds the HTTP layer. auth may be nil, in which case identity
// comes from the X-Agent-ID header or defaultAgentID.
func NewServer(uc usecase.MusicAgentUseCase, auth *AuthManager, cfg config.HTTPConfig, defaultAgentID string, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Server{uc: uc, auth: auth, cfg: cfg, defaultID: defaultAgentID, log: logger}
}

// Handler returns the full router including /health and /metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
		CORS(s.cfg.AllowedOrigins),
		Timeout(s.cfg.RequestTimeout),
	)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(Identity(s.auth, s.defaultID))
		r.Post("/chat", s.handleChat)
		r.Post("/log-song", s.handleLogSong)
		r.Delete("/delete-song", s.handleDeleteSong)
		r.Get("/recommendations", s.handleRecommendations)
		r.Get("/profile", s.handleProfile)
		r.Get("/sessions", s.handleSessions)
	})

	notFound := func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, msgNotFound)
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	return r
}

// ===== request/response bodies =====

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type logSongRequest struct {
	Song   string   `json:"song"`
	Artist string   `json:"artist"`
	Genre  string   `json:"genre"`
	Mood   string   `json:"mood"`
	Rating *float64 `json:"rating,omitempty"`
}

func (req logSongRequest) validate() error {
	var missing []string
	for _, f := range []struct{ name, val string }{
		{"song", req.Song}, {"artist", req.Artist}, {"genre", req.Genre}, {"mood", req.Mood},
	} {
		if strings.TrimSpace(f.val) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrInvalidArgument, strings.Join(missing, ", "))
	}
	return nil
}

type logSongResponse struct {
	Session *model.ListeningSession `json:"session"`
}

type deleteSongRequest struct {
	SessionID string `json:"sessionId"`
}

type recommendationsResponse struct {
	Recommendations []model.ListeningSession `json:"recommendations"`
}

type sessionsResponse struct {
	Sessions []model.ListeningSession `json:"sessions"`
}

// ===== handlers =====

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.fail(w, r, fmt.Errorf("%w: message is required", domain.ErrInvalidArgument))
		return
	}
	reply, err := s.uc.Chat(r.Context(), logging.AgentID(r.Context()), req.Message)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: reply})
}

func (s *Server) handleLogSong(w http.ResponseWriter, r *http.Request) {
	var req logSongRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.fail(w, r, err)
		return
	}
	session, err := s.uc.LogSong(r.Context(), logging.AgentID(r.Context()), usecase.LogSongInput{
		Song:   req.Song,
		Artist: req.Artist,
		Genre:  req.Genre,
		Mood:   req.Mood,
		Rating: req.Rating,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logSongResponse{Session: session})
}

func (s *Server) handleDeleteSong(w http.ResponseWriter, r *http.Request) {
	var req deleteSongRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		s.fail(w, r, fmt.Errorf("%w: sessionId is required", domain.ErrInvalidArgument))
		return
	}
	res, err := s.uc.DeleteSong(r.Context(), logging.AgentID(r.Context()), req.SessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.uc.GetRecommendations(r.Context(), logging.AgentID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recommendationsResponse{Recommendations: nonNil(recs)})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.uc.GetTasteProfile(r.Context(), logging.AgentID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	profile.RecentSessions = nonNil(profile.RecentSessions)
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.uc.GetListeningSessions(r.Context(), logging.AgentID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: nonNil(sessions)})
}

// fail maps an error onto a status. Only invalid input surfaces its message;
// everything else is logged and reported as a generic 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrInvalidArgument) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	l := logging.With(r.Context(), s.log)
	l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, msgInternal)
}

// ===== helpers =====

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func nonNil(s []model.ListeningSession) []model.ListeningSession {
	if s == nil {
		return []model.ListeningSession{}
	}
	return s
}
