package roster

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/terra-clan/sponsor-eval/internal/models"
)

// Source fetches raw assignment rows from the external data source
type Source interface {
	FetchRows(ctx context.Context) ([]models.AssignmentRow, error)
}

// Loader yields the current roster index
type Loader interface {
	Load(ctx context.Context) (*Index, error)
}

// Cache holds the most recently fetched Index and shares it between sessions.
// The index is replaced wholesale on every successful fetch.
type Cache struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	index    *Index
	loadedAt time.Time
	stale    bool
}

// NewCache creates a roster cache. A ttl of zero keeps the index until Invalidate.
func NewCache(source Source, ttl time.Duration) *Cache {
	return &Cache{
		source: source,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Load returns the installed index, fetching one if none is installed, the
// installed one expired, or Invalidate was called. A failed fetch installs nothing.
func (c *Cache) Load(ctx context.Context) (*Index, error) {
	if idx := c.current(); idx != nil {
		return idx, nil
	}

	v, err, _ := c.group.Do("roster", func() (interface{}, error) {
		if idx := c.current(); idx != nil {
			return idx, nil
		}

		rows, err := c.source.FetchRows(ctx)
		if err != nil {
			slog.Error("roster fetch failed", "error", err)
			return nil, err
		}

		idx := Build(rows)

		c.mu.Lock()
		c.index = idx
		c.loadedAt = c.now()
		c.stale = false
		c.mu.Unlock()

		slog.Info("roster loaded", "rows", len(rows), "sponsors", idx.Len())
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Index), nil
}

// Invalidate forces the next Load to refetch
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stale = true
}

func (c *Cache) current() *Index {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.index == nil || c.stale {
		return nil
	}
	if c.ttl > 0 && c.now().Sub(c.loadedAt) >= c.ttl {
		return nil
	}
	return c.index
}

// Static is a Loader over a fixed index
type Static struct {
	Index *Index
}

// Load returns the fixed index
func (s Static) Load(context.Context) (*Index, error) {
	return s.Index, nil
}
