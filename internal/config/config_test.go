package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ROSTER_URL", "http://roster.local/")
	t.Setenv("SUBMIT_URL", "http://sink.local/")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 8080 {
		t.Errorf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Storage.Driver != DriverFile || cfg.Storage.Key != "sponsor_progress_v1" {
		t.Errorf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Session.RequireRating || cfg.Session.ResetClearsIdentity {
		t.Errorf("session policies should default off: %+v", cfg.Session)
	}
	if cfg.Session.IdleTTL != 30*time.Minute {
		t.Errorf("expected 30m idle ttl, got %v", cfg.Session.IdleTTL)
	}
	if cfg.Cleanup.Interval != 5*time.Minute {
		t.Errorf("expected 5m cleanup interval, got %v", cfg.Cleanup.Interval)
	}
	if cfg.Roster.Timeout != 0 || cfg.Submission.Timeout != 0 {
		t.Error("remote calls should have no timeout by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("STORAGE_DSN", "postgres://localhost/eval")
	t.Setenv("SESSION_REQUIRE_RATING", "true")
	t.Setenv("SESSION_RESET_CLEARS_IDENTITY", "true")
	t.Setenv("ROSTER_CACHE_TTL", "10m")
	t.Setenv("REMOTE_TIMEOUT", "15s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Session.RequireRating || !cfg.Session.ResetClearsIdentity {
		t.Errorf("expected policies on: %+v", cfg.Session)
	}
	if cfg.Roster.CacheTTL != 10*time.Minute {
		t.Errorf("expected 10m cache ttl, got %v", cfg.Roster.CacheTTL)
	}
	if cfg.Roster.Timeout != 15*time.Second || cfg.Submission.Timeout != 15*time.Second {
		t.Errorf("expected 15s timeouts, got %v / %v", cfg.Roster.Timeout, cfg.Submission.Timeout)
	}
}

func TestLoadParseError(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "not-an-int")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:     ServerConfig{Host: "0.0.0.0", Port: 8080},
			Roster:     RosterConfig{URL: "http://r"},
			Submission: SubmissionConfig{URL: "http://s"},
			Storage:    StorageConfig{Driver: DriverFile, Path: "./data", Key: "k"},
			LogLevel:   "info",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "invalid server port"},
		{name: "no roster url", mutate: func(c *Config) { c.Roster.URL = "" }, wantErr: "roster URL"},
		{name: "no submit url", mutate: func(c *Config) { c.Submission.URL = "" }, wantErr: "submission URL"},
		{name: "blank key", mutate: func(c *Config) { c.Storage.Key = " " }, wantErr: "storage key"},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "etcd" }, wantErr: "unknown storage driver"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage.Driver = DriverPostgres }, wantErr: "DSN"},
		{name: "sqlite without path", mutate: func(c *Config) { c.Storage.Driver = DriverSQLite; c.Storage.Path = "" }, wantErr: "storage path"},
		{name: "memory", mutate: func(c *Config) { c.Storage.Driver = DriverMemory; c.Storage.Path = "" }},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}
