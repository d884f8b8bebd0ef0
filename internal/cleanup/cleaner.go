package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Evictor drops browser-context sessions that have been idle too long
type Evictor interface {
	EvictIdle(maxIdle time.Duration) int
}

// Cleaner handles periodic eviction of idle sessions. Evicted sessions keep
// their durable progress and are re-opened on the next request.
type Cleaner struct {
	evictor  Evictor
	interval time.Duration
	idleTTL  time.Duration
}

// NewCleaner creates a new cleanup worker
func NewCleaner(evictor Evictor, interval, idleTTL time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}

	return &Cleaner{
		evictor:  evictor,
		interval: interval,
		idleTTL:  idleTTL,
	}
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

// run is the main loop for the cleanup worker
func (c *Cleaner) run(ctx context.Context) {
	slog.Info("cleanup worker started", "interval", c.interval, "idle_ttl", c.idleTTL)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// cleanup evicts idle sessions once
func (c *Cleaner) cleanup() int {
	slog.Debug("running cleanup cycle")

	n := c.evictor.EvictIdle(c.idleTTL)
	if n == 0 {
		slog.Debug("no idle sessions found")
		return 0
	}

	slog.Info("evicted idle sessions", "count", n)
	return n
}
