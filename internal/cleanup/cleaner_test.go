package cleanup

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeEvictor struct {
	mu    sync.Mutex
	calls []time.Duration
	n     int
	tick  chan struct{}
}

func (f *fakeEvictor) EvictIdle(maxIdle time.Duration) int {
	f.mu.Lock()
	f.calls = append(f.calls, maxIdle)
	f.mu.Unlock()
	if f.tick != nil {
		select {
		case f.tick <- struct{}{}:
		default:
		}
	}
	return f.n
}

func TestNewCleanerDefaults(t *testing.T) {
	c := NewCleaner(&fakeEvictor{}, 0, 0)
	if c.interval != 5*time.Minute {
		t.Errorf("expected default interval, got %v", c.interval)
	}
	if c.idleTTL != 30*time.Minute {
		t.Errorf("expected default idle ttl, got %v", c.idleTTL)
	}
}

func TestCleanupPassesIdleTTL(t *testing.T) {
	ev := &fakeEvictor{n: 3}
	c := NewCleaner(ev, time.Minute, 10*time.Minute)

	if n := c.cleanup(); n != 3 {
		t.Errorf("expected 3 evictions, got %d", n)
	}
	if len(ev.calls) != 1 || ev.calls[0] != 10*time.Minute {
		t.Errorf("unexpected calls %v", ev.calls)
	}
}

func TestStartRunsOnTicker(t *testing.T) {
	ev := &fakeEvictor{tick: make(chan struct{}, 1)}
	c := NewCleaner(ev, 10*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	select {
	case <-ev.tick:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup never ran")
	}
}
