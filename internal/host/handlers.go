package host

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/terra-clan/sponsor-eval/internal/models"
	"github.com/terra-clan/sponsor-eval/internal/session"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeError(w, status, &apiError{Code: code, Message: message})
}

func writeError(w http.ResponseWriter, status int, apiErr *apiError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error:   apiErr,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondSessionError maps a session error to a status and the message the
// form shows
func respondSessionError(w http.ResponseWriter, err error) {
	var (
		validation *session.ValidationError
		unknown    *session.UnknownSponsorError
		dataSource *session.DataSourceError
		completed  *session.AlreadyCompletedError
		submission *session.SubmissionError
	)

	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.As(err, &validation):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, session.ErrInvalidScore):
		status, code = http.StatusBadRequest, "invalid_score"
	case errors.As(err, &unknown):
		status, code = http.StatusNotFound, "unknown_sponsor"
	case errors.Is(err, session.ErrUnknownProject):
		status, code = http.StatusNotFound, "unknown_project"
	case errors.As(err, &dataSource):
		status, code = http.StatusBadGateway, "data_source_error"
	case errors.As(err, &submission):
		status, code = http.StatusBadGateway, "submission_failed"
	case errors.As(err, &completed):
		status, code = http.StatusConflict, "already_completed"
	case errors.Is(err, session.ErrSubmissionInFlight):
		status, code = http.StatusConflict, "submission_in_flight"
	case errors.Is(err, session.ErrNoProject):
		status, code = http.StatusConflict, "no_project"
	case errors.Is(err, session.ErrInvalidState):
		status, code = http.StatusConflict, "invalid_state"
	case errors.Is(err, session.ErrNoStudents):
		status, code = http.StatusUnprocessableEntity, "no_students"
	case errors.Is(err, session.ErrNothingRated):
		status, code = http.StatusUnprocessableEntity, "nothing_rated"
	default:
		slog.Error("unexpected session error", "error", err)
	}

	writeError(w, status, &apiError{
		Code:      code,
		Message:   session.StatusMessage(err),
		Retryable: session.Retryable(err),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// settle detaches ctx from client cancellation; roster fetches and
// submissions run until they settle
func settle(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.Ping(r.Context()); err != nil {
		slog.Warn("storage not ready", "error", err)
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ready",
		"sessions": s.registry.Len(),
	})
}

// Shared handlers

func (s *Server) handleRubric(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Rubric.Criteria())
}

func (s *Server) handleCreateContext(w http.ResponseWriter, r *http.Request) {
	token, _, err := s.registry.Create(r.Context())
	if err != nil {
		respondSessionError(w, err)
		return
	}

	slog.Info("browser context opened", "context", token)
	respondJSON(w, http.StatusCreated, models.ContextResponse{Token: token})
}

func (s *Server) handleRefreshRoster(w http.ResponseWriter, r *http.Request) {
	s.deps.Roster.Invalidate()

	idx, err := s.deps.Roster.Load(settle(r.Context()))
	if err != nil {
		respondSessionError(w, &session.DataSourceError{Err: err})
		return
	}

	respondJSON(w, http.StatusOK, models.RefreshResponse{Sponsors: idx.Len()})
}

// Session handlers

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	respondJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleSubmitIdentity(w http.ResponseWriter, r *http.Request) {
	var req models.IdentityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess := SessionFromContext(r.Context())
	if err := sess.SubmitIdentity(settle(r.Context()), req.Name, req.Email); err != nil {
		respondSessionError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleSelectProject(w http.ResponseWriter, r *http.Request) {
	var req models.SelectProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess := SessionFromContext(r.Context())
	if err := sess.SelectProject(req.Project); err != nil {
		respondSessionError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleSetScore(w http.ResponseWriter, r *http.Request) {
	var req models.ScoreRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess := SessionFromContext(r.Context())
	if err := sess.SetScore(r.Context(), req.StudentIndex, req.CriterionIndex, req.Score); err != nil {
		respondSessionError(w, err)
		return
	}

	draft, _ := sess.Draft()
	respondJSON(w, http.StatusOK, draft)
}

func (s *Server) handleSetComment(w http.ResponseWriter, r *http.Request) {
	var req models.CommentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess := SessionFromContext(r.Context())
	if err := sess.SetComment(r.Context(), req.Comment); err != nil {
		respondSessionError(w, err)
		return
	}

	draft, _ := sess.Draft()
	respondJSON(w, http.StatusOK, draft)
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	draft, err := sess.Draft()
	if err != nil {
		respondSessionError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, draft)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	receipt, err := sess.Submit(settle(r.Context()))
	if err != nil {
		respondSessionError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.SubmitResponse{
		Receipt: receipt,
		Session: sess.View(),
	})
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if err := sess.ReturnToIdentity(); err != nil {
		respondSessionError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if err := sess.Reset(r.Context()); err != nil {
		respondSessionError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, sess.View())
}
