package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"music-taste-agent/internal/app"
	"music-taste-agent/internal/application"
	"music-taste-agent/internal/config"
	tele "music-taste-agent/internal/infra/adapters/telegram"
	"music-taste-agent/internal/infra/api"
	"music-taste-agent/internal/infra/i18n"
	"music-taste-agent/internal/infra/logging"
	"music-taste-agent/internal/infra/metrics"
	red "music-taste-agent/internal/infra/redis"
)

// Set via -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("DEV MODE enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Agent runtime (store, lock, AI provider) ----
	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build agent runtime")
	}
	defer rt.Close()

	// ---- Telegram (optional) ----
	botDone := make(chan struct{})
	if cfg.Bot.Token != "" {
		tr, err := i18n.Default()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load translations")
		}
		var limiter tele.RateLimiter
		if rt.Redis != nil {
			limiter = red.NewRateLimiter(rt.Redis)
		}
		bot, err := tele.NewRealTelegramBotAdapter(cfg.Bot, application.NewBotFacade(rt.Agent, tr), limiter, tr, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to start telegram bot")
		}
		go func() {
			defer close(botDone)
			if err := bot.StartPolling(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("telegram polling stopped")
			}
		}()
		logger.Info().Int("workers", cfg.Bot.Workers).Bool("rate_limited", limiter != nil).Msg("telegram bot polling")
	} else {
		close(botDone)
	}

	// ---- HTTP ----
	auth := api.NewAuthManager(cfg.Auth.JWTSecret, 0)
	srv := api.NewServer(rt.Agent, auth, cfg.HTTP, cfg.Agent.DefaultID, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Bool("jwt_auth", auth != nil).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server forced to shutdown")
	}
	select {
	case <-botDone:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("telegram workers did not stop in time")
	}
	logger.Info().Msg("stopped")
}
