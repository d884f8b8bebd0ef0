package host

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/terra-clan/sponsor-eval/internal/session"
)

// Opener builds the session of a browser context. The session is not started.
type Opener func(token string) *session.Session

type entry struct {
	session  *session.Session
	lastSeen time.Time
}

// Registry holds the live session of every browser context
type Registry struct {
	open Opener
	now  func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty registry
func NewRegistry(open Opener) *Registry {
	return &Registry{
		open:    open,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Create opens a new browser context and returns its token
func (r *Registry) Create(ctx context.Context) (string, *session.Session, error) {
	token := uuid.NewString()
	sess, err := r.Get(ctx, token)
	if err != nil {
		return "", nil, err
	}
	return token, sess, nil
}

// Get returns the session of token, re-opening it from storage when it is
// not live. Concurrent calls for the same token open it once.
func (r *Registry) Get(ctx context.Context, token string) (*session.Session, error) {
	if sess := r.touch(token); sess != nil {
		return sess, nil
	}

	v, err, _ := r.group.Do(token, func() (interface{}, error) {
		if sess := r.touch(token); sess != nil {
			return sess, nil
		}

		sess := r.open(token)
		if err := sess.Start(ctx); err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.entries[token] = &entry{session: sess, lastSeen: r.now()}
		r.mu.Unlock()
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*session.Session), nil
}

func (r *Registry) touch(token string) *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[token]
	if !ok {
		return nil
	}
	e.lastSeen = r.now()
	return e.session
}

// EvictIdle drops sessions not used for maxIdle. Sessions with a submission
// in flight or an open event stream are kept. It returns the number of
// sessions dropped.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for token, e := range r.entries {
		if e.lastSeen.After(cutoff) {
			continue
		}
		if !e.session.Evictable() {
			continue
		}
		delete(r.entries, token)
		evicted++
	}
	return evicted
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
