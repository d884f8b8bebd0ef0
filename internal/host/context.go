package host

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/terra-clan/sponsor-eval/internal/session"
)

// ContextHeader carries the browser-context token
const ContextHeader = "X-Form-Context"

type contextKey string

const sessionContextKey contextKey = "form_session"

// SessionFromContext extracts the Session from a request context
func SessionFromContext(ctx context.Context) *session.Session {
	sess, ok := ctx.Value(sessionContextKey).(*session.Session)
	if !ok {
		return nil
	}
	return sess
}

// ContextWithSession adds a Session to a request context
func ContextWithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// withSession resolves the browser context of a request. Browsers can not set
// headers on WebSocket handshakes, so the token is also read from ?context=.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(ContextHeader)
		if token == "" {
			token = r.URL.Query().Get("context")
		}
		if token == "" {
			respondError(w, http.StatusBadRequest, "missing_context", "provide the "+ContextHeader+" header")
			return
		}

		id, err := uuid.Parse(token)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_context", "context token must be a UUID")
			return
		}

		sess, err := s.registry.Get(r.Context(), id.String())
		if err != nil {
			respondSessionError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
	})
}
