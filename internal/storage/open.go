package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/terra-clan/sponsor-eval/internal/config"
)

// Open creates the backend selected by cfg.Driver
func Open(ctx context.Context, cfg config.StorageConfig, redisCfg config.RedisConfig) (Store, error) {
	slog.Info("opening storage", "driver", cfg.Driver)

	var (
		store Store
		err   error
	)

	switch cfg.Driver {
	case config.DriverMemory:
		store = NewMemoryStore()
	case config.DriverFile:
		store, err = NewFileStore(cfg.Path)
	case config.DriverSQLite:
		store, err = NewSQLiteStore(ctx, sqlitePath(cfg.Path))
	case config.DriverRedis:
		store, err = NewRedisStore(ctx, RedisConfig{
			Address:  redisCfg.Address,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
	case config.DriverPostgres:
		store, err = NewPostgresStore(ctx, PostgresConfig{DSN: cfg.DSN})
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
	}

	if err != nil {
		return nil, err
	}
	return store, nil
}

// sqlitePath treats a path without an extension as a directory holding progress.db
func sqlitePath(p string) string {
	if filepath.Ext(p) != "" {
		return p
	}
	_ = os.MkdirAll(p, 0o755)
	return filepath.Join(p, "progress.db")
}
