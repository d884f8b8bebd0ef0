// Package host serves the evaluation form's state machine to a thin view
// over HTTP, holding one session per browser context.
package host

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/sponsor-eval/internal/config"
	"github.com/terra-clan/sponsor-eval/internal/progress"
	"github.com/terra-clan/sponsor-eval/internal/roster"
	"github.com/terra-clan/sponsor-eval/internal/rubric"
	"github.com/terra-clan/sponsor-eval/internal/session"
	"github.com/terra-clan/sponsor-eval/internal/storage"
)

// RosterLoader is a roster loader that can be told to refetch
type RosterLoader interface {
	roster.Loader
	Invalidate()
}

// Deps are the shared collaborators of every session the server hosts
type Deps struct {
	Store      storage.Store
	StorageKey string
	Roster     RosterLoader
	Sink       session.Sink
	Rubric     *rubric.Rubric
	Options    session.Options
}

// Server represents the view host HTTP server
type Server struct {
	config   config.ServerConfig
	router   *chi.Mux
	deps     Deps
	registry *Registry
}

// NewServer creates a new view host server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	if deps.Rubric == nil {
		deps.Rubric = rubric.Default()
	}

	s := &Server{
		config: cfg,
		deps:   deps,
	}
	s.registry = NewRegistry(s.openSession)
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// Registry returns the live session registry
func (s *Server) Registry() *Registry {
	return s.registry
}

// openSession builds the session of one browser context over its own
// namespace of the durable store
func (s *Server) openSession(token string) *session.Session {
	ns := storage.WithPrefix(s.deps.Store, "ctx:"+token+":")
	return session.New(session.Deps{
		Roster:   s.deps.Roster,
		Sink:     s.deps.Sink,
		Progress: progress.NewBridge(ns, s.deps.StorageKey),
		Rubric:   s.deps.Rubric,
	}, s.deps.Options)
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", ContextHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	timeout := middleware.Timeout(60 * time.Second)

	r.With(timeout).Get("/health", s.handleHealth)
	r.With(timeout).Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(timeout)
			r.Get("/rubric", s.handleRubric)
			r.Post("/contexts", s.handleCreateContext)
			r.Post("/roster/refresh", s.handleRefreshRoster)
		})

		r.Route("/session", func(r chi.Router) {
			r.Use(s.withSession)

			// The event stream outlives any request timeout
			r.Get("/events", s.handleEvents)

			r.Group(func(r chi.Router) {
				r.Use(timeout)
				r.Get("/", s.handleGetSession)
				r.Post("/identity", s.handleSubmitIdentity)
				r.Post("/select", s.handleSelectProject)
				r.Put("/scores", s.handleSetScore)
				r.Put("/comment", s.handleSetComment)
				r.Get("/draft", s.handleGetDraft)
				r.Post("/submit", s.handleSubmit)
				r.Post("/back", s.handleBack)
				r.Post("/reset", s.handleReset)
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
