package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/terra-clan/sponsor-eval/internal/config"
)

// testStoreContract runs the behavior every backend must share
func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	key := "ctx:" + uuid.NewString() + ":sponsor_progress_v1"

	if _, err := s.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}

	if err := s.Set(ctx, key, []byte(`{"name":"Ada"}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"name":"Ada"}` {
		t.Errorf("unexpected value %q", got)
	}

	if err := s.Set(ctx, key, []byte(`{"name":"Bob"}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if string(got) != `{"name":"Bob"}` {
		t.Errorf("expected overwritten value, got %q", got)
	}

	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	testStoreContract(t, s)

	// stored values are copies
	ctx := context.Background()
	buf := []byte("abc")
	s.Set(ctx, "k", buf)
	buf[0] = 'x'
	got, _ := s.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("store must copy on Set, got %q", got)
	}
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Set(ctx, "k", []byte("v")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	testStoreContract(t, s)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".json" {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := first.Set(ctx, "a/b:c", []byte("v1")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	second, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := second.Get(ctx, "a/b:c")
	if err != nil || string(got) != "v1" {
		t.Fatalf("expected v1 after reopen, got %q %v", got, err)
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "progress.db")

	s, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	testStoreContract(t, s)
	s.Set(ctx, "persist", []byte("kept"))
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// reopening must not reapply migrations or lose data
	reopened, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "persist")
	if err != nil || string(got) != "kept" {
		t.Fatalf("expected kept, got %q %v", got, err)
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	s, err := NewPostgresStore(context.Background(), PostgresConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	defer s.Close()

	testStoreContract(t, s)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	s, err := NewRedisStore(context.Background(), RedisConfig{Address: addr})
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer s.Close()

	testStoreContract(t, s)
}

func TestNamespaced(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()

	a := WithPrefix(inner, "ctx:a:")
	b := WithPrefix(inner, "ctx:b:")

	a.Set(ctx, "progress", []byte("A"))
	b.Set(ctx, "progress", []byte("B"))

	if got, _ := a.Get(ctx, "progress"); string(got) != "A" {
		t.Errorf("namespace a got %q", got)
	}
	if got, _ := b.Get(ctx, "progress"); string(got) != "B" {
		t.Errorf("namespace b got %q", got)
	}
	if got, _ := inner.Get(ctx, "ctx:a:progress"); string(got) != "A" {
		t.Errorf("expected prefixed key in inner store, got %q", got)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := b.Get(ctx, "progress"); err != nil {
		t.Errorf("closing a namespace must not close the inner store: %v", err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     config.StorageConfig
		wantErr bool
	}{
		{name: "memory", cfg: config.StorageConfig{Driver: config.DriverMemory}},
		{name: "file", cfg: config.StorageConfig{Driver: config.DriverFile, Path: t.TempDir()}},
		{name: "sqlite dir", cfg: config.StorageConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "db")}},
		{name: "sqlite file", cfg: config.StorageConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "eval.db")}},
		{name: "unknown", cfg: config.StorageConfig{Driver: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(ctx, tt.cfg, config.RedisConfig{})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if s != nil {
					t.Error("expected nil store on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer s.Close()
			testStoreContract(t, s)
		})
	}
}
