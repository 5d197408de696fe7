// Package config loads assistant configuration from YAML files, .env files
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the assistant.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Content       ContentConfig       `yaml:"content"`
	Knowledge     KnowledgeConfig     `yaml:"knowledge"`
	LLM           LLMConfig           `yaml:"llm"`
	Cache         CacheConfig         `yaml:"cache"`
	Database      DatabaseConfig      `yaml:"database"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	ResponseField    string        `yaml:"response_field"` // response or reply
	AllowedOrigins   []string      `yaml:"allowed_origins"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes"`
}

// ContentConfig points at an optional section override file.
type ContentConfig struct {
	Path string `yaml:"path"`
}

// KnowledgeConfig controls the grounding text given to the model.
type KnowledgeConfig struct {
	Dir             string        `yaml:"dir"`
	Watch           bool          `yaml:"watch"`
	Debounce        time.Duration `yaml:"debounce"`
	MaxContextBytes int           `yaml:"max_context_bytes"`
	Required        bool          `yaml:"required"`
}

// LLMConfig holds generative model settings.
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // groq, gemini or openai
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
}

// CacheConfig holds reply cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // none, memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// DatabaseConfig holds chat log storage settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // none, sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	ServiceName    string `yaml:"service_name"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// Load reads configuration from path (optional), then .env, then the
// environment, and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		if cfg.Content.Path != "" {
			cfg.Content.Path = ResolveRelativePath(path, cfg.Content.Path)
		}
		if cfg.Knowledge.Dir != "" {
			cfg.Knowledge.Dir = ResolveRelativePath(path, cfg.Knowledge.Dir)
		}
		if p := cfg.Database.SQLite.Path; p != "" && p != ":memory:" {
			cfg.Database.SQLite.Path = ResolveRelativePath(path, p)
		}
	}

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             3001,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     30 * time.Second,
			IdleTimeout:      120 * time.Second,
			RequestTimeout:   20 * time.Second,
			GracefulShutdown: 10 * time.Second,
			ResponseField:    "response",
			AllowedOrigins:   []string{"*"},
			MaxBodyBytes:     64 << 10,
		},
		Knowledge: KnowledgeConfig{
			Watch:           true,
			Debounce:        500 * time.Millisecond,
			MaxContextBytes: 24 << 10,
		},
		LLM: LLMConfig{
			Provider:    "groq",
			Timeout:     8 * time.Second,
			MaxRetries:  1,
			Temperature: 0.3,
			MaxTokens:   512,
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        10 * time.Minute,
			MaxEntries: 5000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "assistant:",
			},
		},
		Database: DatabaseConfig{
			Driver: "none",
			SQLite: SQLiteConfig{
				Path:         "assistant.db",
				MaxOpenConns: 1,
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			ServiceName:    "assistant",
			MetricsEnabled: true,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ResponseField != "response" && c.Server.ResponseField != "reply" {
		return fmt.Errorf("invalid response field: %s", c.Server.ResponseField)
	}

	switch c.LLM.Provider {
	case "groq", "gemini", "openai":
	default:
		return fmt.Errorf("invalid llm provider: %s", c.LLM.Provider)
	}

	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm timeout must be positive")
	}

	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm max_retries must not be negative")
	}

	if c.Server.RequestTimeout <= c.LLM.Timeout {
		return fmt.Errorf("request_timeout (%s) must exceed llm timeout (%s)", c.Server.RequestTimeout, c.LLM.Timeout)
	}

	if c.Cache.Driver != "none" && c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	switch c.Database.Driver {
	case "none", "sqlite":
	case "postgres":
		if c.Database.Postgres.DSN == "" {
			return fmt.Errorf("postgres driver requires a dsn")
		}
	default:
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Knowledge.Required && c.Knowledge.Dir == "" {
		return fmt.Errorf("knowledge.required needs knowledge.dir")
	}

	return nil
}

// AIEnabled reports whether a credential is configured for the model provider.
func (c *Config) AIEnabled() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}

// DatabaseDSN returns the appropriate database connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLite.Path
	}
	return c.Database.Postgres.DSN
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if v := os.Getenv(key); v != "" {
			if port, err := strconv.Atoi(v); err == nil {
				cfg.Server.Port = port
			}
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("RESPONSE_FIELD"); v != "" {
		cfg.Server.ResponseField = v
	}

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}

	if v := os.Getenv("CONTENT_PATH"); v != "" {
		cfg.Content.Path = v
	}

	if v := os.Getenv("KNOWLEDGE_DIR"); v != "" {
		cfg.Knowledge.Dir = v
	}

	if v := os.Getenv("KNOWLEDGE_REQUIRED"); v != "" {
		cfg.Knowledge.Required = v == "true" || v == "1"
	}

	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = strings.ToLower(v)
	}

	// Provider-specific keys first, generic key last so it wins.
	switch cfg.LLM.Provider {
	case "groq":
		if v := os.Getenv("GROQ_API_KEY"); v != "" {
			cfg.LLM.APIKey = v
		}
	case "gemini":
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			cfg.LLM.APIKey = v
		}
	case "openai":
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			cfg.LLM.APIKey = v
		}
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}

	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	if v := os.Getenv("LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LLM.Timeout = d
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		if opts, err := redis.ParseURL(v); err == nil {
			cfg.Cache.Driver = "redis"
			cfg.Cache.Redis.Addr = opts.Addr
			cfg.Cache.Redis.Password = opts.Password
			cfg.Cache.Redis.DB = opts.DB
		}
	}

	if v := os.Getenv("CACHE_DRIVER"); v != "" {
		cfg.Cache.Driver = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	return filepath.Join(filepath.Dir(configPath), targetPath)
}
