// Package app assembles the agent use case from configuration. Every binary
// (HTTP server, bot, operator CLI, seeder) goes through Build so they share
// one store, one lock strategy and one provider setup.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"music-taste-agent/internal/config"
	"music-taste-agent/internal/domain/ports/adapter"
	"music-taste-agent/internal/domain/ports/repository"
	aiAdapters "music-taste-agent/internal/infra/adapters/ai"
	pg "music-taste-agent/internal/infra/db/postgres"
	"music-taste-agent/internal/infra/db/snapshot"
	"music-taste-agent/internal/infra/db/sqlite"
	"music-taste-agent/internal/infra/memory"
	red "music-taste-agent/internal/infra/redis"
	"music-taste-agent/internal/infra/security"
	"music-taste-agent/internal/usecase"
)

// Runtime owns the long-lived dependencies of a process.
type Runtime struct {
	Config *config.Config
	Log    *zerolog.Logger
	Agent  usecase.MusicAgentUseCase

	// Redis is set whenever redis.url is configured, even if the store is elsewhere,
	// so the bot can rate limit.
	Redis *red.Client

	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

func (r *Runtime) onClose(fn func()) { r.closers = append(r.closers, fn) }

// Build connects the configured backends and returns a ready use case.
// On error everything acquired so far is released.
func Build(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*Runtime, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	rt := &Runtime{Config: cfg, Log: logger}
	ready := false
	defer func() {
		if !ready {
			rt.Close()
		}
	}()

	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		rt.Redis = rc
		rt.onClose(func() { _ = rc.Close() })
	}

	codec, err := buildCodec(cfg.Security)
	if err != nil {
		return nil, err
	}

	states, locker, err := rt.buildStore(ctx, codec)
	if err != nil {
		return nil, err
	}

	lm, err := BuildLanguageModel(ctx, cfg.AI, logger)
	if err != nil {
		return nil, err
	}
	gen := aiAdapters.NewMusicGenerator(lm, aiAdapters.GeneratorConfig{
		Model:       cfg.AI.DefaultModel,
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: cfg.AI.Temperature,
	}, logger)

	rt.Agent = usecase.NewMusicAgentUseCase(states, locker, gen, gen, usecase.AgentOptions{
		HistoryWindow:       cfg.Agent.HistoryWindow,
		RecentActivity:      cfg.Agent.RecentActivity,
		RecommendationCount: cfg.Agent.RecommendationCount,
		GeneratorTimeout:    cfg.AI.Timeout,
	}, logger)

	logger.Info().
		Str("store", cfg.Store.Backend).
		Str("ai_provider", cfg.AI.Provider).
		Str("model", cfg.AI.DefaultModel).
		Bool("encrypted_snapshots", codec.Encrypted()).
		Msg("agent runtime ready")
	ready = true
	return rt, nil
}

func buildCodec(cfg config.SecurityConfig) (snapshot.Codec, error) {
	if cfg.EncryptionKey == "" {
		return snapshot.NewCodec(nil), nil
	}
	enc, err := security.NewEncryptionService(cfg.EncryptionKey)
	if err != nil {
		return snapshot.Codec{}, fmt.Errorf("encryption: %w", err)
	}
	return snapshot.NewCodec(enc), nil
}

// buildStore picks the snapshot store and the matching per-agent lock. Memory and
// SQLite serve a single process, so an in-process lock is enough for them.
func (rt *Runtime) buildStore(ctx context.Context, codec snapshot.Codec) (repository.AgentStateRepository, repository.AgentLocker, error) {
	cfg := rt.Config
	switch cfg.Store.Backend {
	case config.StoreMemory:
		return memory.NewStateRepo(), memory.NewLocker(), nil

	case config.StoreSQLite:
		repo, err := sqlite.Open(cfg.Store.SQLitePath, codec)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		rt.onClose(func() { _ = repo.Close() })
		return repo, memory.NewLocker(), nil

	case config.StoreRedis:
		if rt.Redis == nil {
			return nil, nil, fmt.Errorf("redis store selected without redis.url")
		}
		return red.NewStateRepo(rt.Redis), red.NewLocker(rt.Redis, cfg.Redis.LockTTL, rt.Log), nil

	case config.StorePostgres:
		pool, err := pg.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		rt.onClose(pool.Close)
		if err := pg.EnsureSchema(ctx, pool); err != nil {
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		return pg.NewPostgresAgentStateRepo(pool, codec), pg.NewAdvisoryLocker(pool, rt.Log), nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// BuildLanguageModel registers every provider that has credentials and routes by
// model name, defaulting to cfg.Provider. The result is concurrency limited.
func BuildLanguageModel(ctx context.Context, cfg config.AIConfig, logger *zerolog.Logger) (adapter.LanguageModel, error) {
	modelFor := func(provider string) string {
		if provider == cfg.Provider && cfg.DefaultModel != "" {
			return cfg.DefaultModel
		}
		return config.DefaultModelFor(provider)
	}

	byProvider := map[string]adapter.LanguageModel{}
	if cfg.OpenAIKey != "" {
		a, err := aiAdapters.NewOpenAIAdapter(cfg.OpenAIKey, cfg.OpenAIBaseURL, modelFor(config.ProviderOpenAI))
		if err != nil {
			return nil, fmt.Errorf("openai adapter: %w", err)
		}
		byProvider[config.ProviderOpenAI] = a
	}
	if cfg.WorkersAIAccount != "" && cfg.WorkersAIToken != "" {
		a, err := aiAdapters.NewWorkersAIAdapter(cfg.WorkersAIAccount, cfg.WorkersAIToken, modelFor(config.ProviderWorkersAI))
		if err != nil {
			return nil, fmt.Errorf("workers ai adapter: %w", err)
		}
		byProvider[config.ProviderWorkersAI] = a
	}
	if cfg.GeminiKey != "" {
		a, err := aiAdapters.NewGeminiAdapter(ctx, cfg.GeminiKey, cfg.GeminiURL, modelFor(config.ProviderGemini))
		if err != nil {
			return nil, fmt.Errorf("gemini adapter: %w", err)
		}
		byProvider[config.ProviderGemini] = a
	}
	if cfg.Provider == config.ProviderNoop {
		byProvider[config.ProviderNoop] = aiAdapters.NewNoopAIAdapter(logger)
	}
	if _, ok := byProvider[cfg.Provider]; !ok {
		return nil, fmt.Errorf("ai provider %q selected but not configured", cfg.Provider)
	}

	multi := aiAdapters.NewMultiAIAdapter(cfg.Provider, byProvider, nil)
	return aiAdapters.NewLimitedAI(multi, cfg.ConcurrentLimit), nil
}
