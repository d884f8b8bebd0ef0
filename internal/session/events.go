package session

import "github.com/terra-clan/sponsor-eval/internal/models"

// Event types
const (
	EventStateChanged     = "state_changed"
	EventDraftChanged     = "draft_changed"
	EventSubmissionFailed = "submission_failed"
	EventIdentityChanged  = "identity_changed"
)

// Listener receives session events. It is called outside the session lock
// and may call back into the session.
type Listener func(models.SessionEvent)

// Subscribe registers fn for every subsequent event. The returned func
// removes the subscription.
func (s *Session) Subscribe(fn Listener) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.subscribers.Add(1)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.listeners[id]; ok {
			delete(s.listeners, id)
			s.subscribers.Add(-1)
		}
	}
}

// emit queues an event; must hold s.mu
func (s *Session) emit(typ, message string) {
	s.pending = append(s.pending, models.SessionEvent{
		Type:    typ,
		State:   string(s.state),
		Project: s.project,
		Message: message,
	})
}

// do runs fn under the session lock and publishes the events it queued
func (s *Session) do(fn func() error) error {
	s.mu.Lock()
	err := fn()
	events := s.pending
	s.pending = nil
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, ev := range events {
		for _, l := range listeners {
			l(ev)
		}
	}
	return err
}
