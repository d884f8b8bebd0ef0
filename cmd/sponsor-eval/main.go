package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terra-clan/sponsor-eval/internal/cleanup"
	"github.com/terra-clan/sponsor-eval/internal/config"
	"github.com/terra-clan/sponsor-eval/internal/host"
	"github.com/terra-clan/sponsor-eval/internal/remote"
	"github.com/terra-clan/sponsor-eval/internal/roster"
	"github.com/terra-clan/sponsor-eval/internal/rubric"
	"github.com/terra-clan/sponsor-eval/internal/session"
	"github.com/terra-clan/sponsor-eval/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		slog.Error("invalid log level", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	slog.Info("starting sponsor-eval",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Driver,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Open durable storage
	store, err := storage.Open(initCtx, cfg.Storage, cfg.Redis)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	slog.Info("storage opened", "driver", cfg.Storage.Driver)

	// Load rubric
	rub, err := rubric.Load(cfg.Rubric.File)
	if err != nil {
		slog.Error("failed to load rubric", "file", cfg.Rubric.File, "error", err)
		os.Exit(1)
	}

	// Remote data source and submission sink
	source := remote.NewRosterSource(cfg.Roster.URL, remote.WithTimeout(cfg.Roster.Timeout))
	sink := remote.NewSubmissionSink(cfg.Submission.URL, remote.WithTimeout(cfg.Submission.Timeout))
	rosterCache := roster.NewCache(source, cfg.Roster.CacheTTL)

	// Warm the roster; sessions retry the fetch on demand
	if _, err := rosterCache.Load(initCtx); err != nil {
		slog.Warn("initial roster fetch failed", "error", err)
	}

	server := host.NewServer(cfg.Server, host.Deps{
		Store:      store,
		StorageKey: cfg.Storage.Key,
		Roster:     rosterCache,
		Sink:       sink,
		Rubric:     rub,
		Options: session.Options{
			RequireRating:       cfg.Session.RequireRating,
			ResetClearsIdentity: cfg.Session.ResetClearsIdentity,
		},
	})

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start cleanup worker
	cleaner := cleanup.NewCleaner(server.Registry(), cfg.Cleanup.Interval, cfg.Session.IdleTTL)
	cleaner.Start(ctx)

	// Setup HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if err := store.Close(); err != nil {
		slog.Error("storage close error", "error", err)
	}

	slog.Info("sponsor-eval stopped")
}
