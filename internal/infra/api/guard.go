package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"music-taste-agent/internal/infra/logging"
	"music-taste-agent/internal/infra/metrics"
)

// Middleware is registered on the chi router so RequestLog can read the matched route.
type Middleware = func(http.Handler) http.Handler

// TraceID reuses an inbound X-Request-ID or mints a new one and echoes it back.
func TraceID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tid := r.Header.Get("X-Request-ID")
			if tid == "" {
				tid = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", tid)
			ctx := logging.WithTraceID(r.Context(), tid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequestLog(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			route := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				route = rc.RoutePattern()
			}
			metrics.IncHTTPRequest(route, ww.status)

			l := logging.With(r.Context(), logger)
			l.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", route).
				Int("status", ww.status).
				Dur("duration", time.Since(start)).
				Msg("http_request")
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func Recover(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					l := logging.With(r.Context(), logger)
					l.Error().Interface("panic", rec).Msg("panic recovered")
					writeError(w, http.StatusInternalServerError, msgInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CORS sets the browser headers on every response and answers preflight
// requests directly. "*" in allowedOrigins matches any origin.
func CORS(allowedOrigins []string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin, ok := allowOrigin(allowedOrigins, r.Header.Get("Origin")); ok {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Agent-ID")
				if origin != "*" {
					h.Add("Vary", "Origin")
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func allowOrigin(allowed []string, origin string) (string, bool) {
	for _, o := range allowed {
		if o == "*" {
			return "*", true
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin, true
		}
	}
	return "", false
}

// Identity resolves which agent a request talks to. A valid bearer token wins,
// then the X-Agent-ID header, then defaultID. A bearer token that fails
// verification is rejected rather than silently downgraded.
func Identity(auth *AuthManager, defaultID string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			agentID := defaultID
			if h := strings.TrimSpace(r.Header.Get("X-Agent-ID")); h != "" {
				agentID = h
			}
			if auth != nil && auth.HasToken(r) {
				claims, err := auth.ParseFromRequest(r)
				if err != nil {
					writeError(w, http.StatusUnauthorized, "Unauthorized")
					return
				}
				agentID = claims.Subject
			}
			ctx := logging.WithAgentID(r.Context(), agentID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
