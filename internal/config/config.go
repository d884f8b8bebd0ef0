package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage drivers
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for sponsor-eval
type Config struct {
	Server     ServerConfig
	Roster     RosterConfig
	Submission SubmissionConfig
	Storage    StorageConfig
	Redis      RedisConfig
	Rubric     RubricConfig
	Session    SessionConfig
	Cleanup    CleanupConfig
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envDefault:"8080"`
}

// RosterConfig holds the roster source configuration
type RosterConfig struct {
	URL      string        `env:"ROSTER_URL"`
	CacheTTL time.Duration `env:"ROSTER_CACHE_TTL" envDefault:"0s"`
	Timeout  time.Duration `env:"REMOTE_TIMEOUT" envDefault:"0s"`
}

// SubmissionConfig holds the submission sink configuration
type SubmissionConfig struct {
	URL     string        `env:"SUBMIT_URL"`
	Timeout time.Duration `env:"REMOTE_TIMEOUT" envDefault:"0s"`
}

// StorageConfig holds durable storage configuration
type StorageConfig struct {
	Driver string `env:"STORAGE_DRIVER" envDefault:"file"`
	Path   string `env:"STORAGE_PATH" envDefault:"./data"`
	DSN    string `env:"STORAGE_DSN"`
	Key    string `env:"STORAGE_KEY" envDefault:"sponsor_progress_v1"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// RubricConfig holds rubric configuration
type RubricConfig struct {
	File string `env:"RUBRIC_FILE"`
}

// SessionConfig holds evaluation session policy
type SessionConfig struct {
	RequireRating       bool          `env:"SESSION_REQUIRE_RATING" envDefault:"false"`
	ResetClearsIdentity bool          `env:"SESSION_RESET_CLEARS_IDENTITY" envDefault:"false"`
	IdleTTL             time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
}

// CleanupConfig holds cleanup worker configuration
type CleanupConfig struct {
	Interval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"5m"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Roster.URL == "" {
		return fmt.Errorf("roster URL is required")
	}

	if c.Submission.URL == "" {
		return fmt.Errorf("submission URL is required")
	}

	if strings.TrimSpace(c.Storage.Key) == "" {
		return fmt.Errorf("storage key is required")
	}

	switch c.Storage.Driver {
	case DriverMemory, DriverRedis:
	case DriverFile, DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for %s driver", c.Storage.Driver)
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage DSN is required for postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver: %q", c.Storage.Driver)
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// ParseLevel maps a LOG_LEVEL value to a slog level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %q", level)
	}
}
