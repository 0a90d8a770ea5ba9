package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
	StorePostgres = "postgres"

	ProviderOpenAI    = "openai"
	ProviderWorkersAI = "workers_ai"
	ProviderGemini    = "gemini"
	ProviderNoop      = "noop"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type AgentConfig struct {
	DefaultID           string `yaml:"default_id"`
	HistoryWindow       int    `yaml:"history_window"`
	RecentActivity      int    `yaml:"recent_activity"`
	RecommendationCount int    `yaml:"recommendation_count"`
}

type StoreConfig struct {
	Backend    string `yaml:"backend"` // memory|sqlite|redis|postgres
	SQLitePath string `yaml:"sqlite_path"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type AIConfig struct {
	Provider         string        `yaml:"provider"` // openai|workers_ai|gemini|noop
	OpenAIKey        string        `yaml:"openai_key"`
	OpenAIBaseURL    string        `yaml:"openai_base_url"`
	GeminiKey        string        `yaml:"gemini_key"`
	GeminiURL        string        `yaml:"gemini_url"`
	WorkersAIAccount string        `yaml:"workers_ai_account"`
	WorkersAIToken   string        `yaml:"workers_ai_token"`
	DefaultModel     string        `yaml:"default_model"`
	MaxTokens        int           `yaml:"max_tokens"`
	Temperature      float64       `yaml:"temperature"`
	ConcurrentLimit  int           `yaml:"concurrent_limit"` // max concurrent AI calls
	Timeout          time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type BotConfig struct {
	Token      string        `yaml:"token"`
	Workers    int           `yaml:"workers"` // update workers
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Agent    AgentConfig    `yaml:"agent"`
	Store    StoreConfig    `yaml:"store"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	AI       AIConfig       `yaml:"ai"`
	Auth     AuthConfig     `yaml:"auth"`
	Bot      BotConfig      `yaml:"bot"`
	Security SecurityConfig `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig parses -config and -dev from the command line and loads the file.
func LoadConfig() (*Config, error) {
	configPath := ""
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	cfg, err := Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Load reads a .env file when present, expands ${VAR} references in the YAML,
// applies defaults and validates. A missing config file yields the defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8787
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"*"}
	}
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = 60 * time.Second
	}

	if c.Agent.DefaultID == "" {
		c.Agent.DefaultID = "user_default"
	}
	if c.Agent.HistoryWindow <= 0 {
		c.Agent.HistoryWindow = 12
	}
	if c.Agent.RecentActivity <= 0 {
		c.Agent.RecentActivity = 3
	}
	if c.Agent.RecommendationCount <= 0 {
		c.Agent.RecommendationCount = 5
	}

	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = StoreMemory
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "music-agent.db"
	}

	if c.Redis.LockTTL <= 0 {
		c.Redis.LockTTL = time.Minute
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}

	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	if c.AI.Provider == "" {
		c.AI.Provider = ProviderNoop
	}
	if c.AI.DefaultModel == "" {
		c.AI.DefaultModel = DefaultModelFor(c.AI.Provider)
	}
	if c.AI.MaxTokens <= 0 {
		c.AI.MaxTokens = 400
	}
	if c.AI.Temperature <= 0 {
		c.AI.Temperature = 0.8
	}
	if c.AI.ConcurrentLimit <= 0 {
		c.AI.ConcurrentLimit = 16
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 30 * time.Second
	}

	if c.Bot.Workers <= 0 {
		c.Bot.Workers = 8
	}
	if c.Bot.RateLimit <= 0 {
		c.Bot.RateLimit = 20
	}
	if c.Bot.RateWindow <= 0 {
		c.Bot.RateWindow = time.Minute
	}
}

// DefaultModelFor returns the model used when ai.default_model is empty.
func DefaultModelFor(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderWorkersAI:
		return "@cf/meta/llama-3.3-70b-instruct-fp8-fast"
	case ProviderGemini:
		return "gemini-2.0-flash"
	default:
		return "noop"
	}
}

// Validate performs minimal validation of required settings.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory, StoreSQLite:
	case StoreRedis:
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for the redis store")
		}
	case StorePostgres:
		if c.Database.URL == "" {
			return errors.New("database.url is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}

	switch c.AI.Provider {
	case ProviderNoop:
	case ProviderOpenAI:
		if c.AI.OpenAIKey == "" {
			return errors.New("ai.openai_key is required for the openai provider")
		}
	case ProviderWorkersAI:
		if c.AI.WorkersAIAccount == "" || c.AI.WorkersAIToken == "" {
			return errors.New("ai.workers_ai_account and ai.workers_ai_token are required for the workers_ai provider")
		}
	case ProviderGemini:
		if c.AI.GeminiKey == "" {
			return errors.New("ai.gemini_key is required for the gemini provider")
		}
	default:
		return fmt.Errorf("unknown ai.provider %q", c.AI.Provider)
	}

	if k := len(c.Security.EncryptionKey); k != 0 && k != 16 && k != 24 && k != 32 {
		return fmt.Errorf("security.encryption_key must be 16, 24, or 32 bytes; got %d", k)
	}
	return nil
}
