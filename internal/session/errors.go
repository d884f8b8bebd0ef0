package session

import (
	"errors"
	"fmt"

	"github.com/terra-clan/sponsor-eval/internal/draft"
)

var (
	ErrInvalidState       = errors.New("operation not allowed in current state")
	ErrSubmissionInFlight = errors.New("a submission is already in progress")
	ErrNoProject          = errors.New("no project is loaded")
	ErrUnknownProject     = errors.New("project is not assigned to this sponsor")
	ErrNoStudents         = errors.New("project has no students")
	ErrNothingRated       = errors.New("no student has been rated")
	ErrInvalidScore       = draft.ErrInvalidScore
)

// ValidationError reports bad identity or edit input. Nothing was changed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// UnknownSponsorError reports an identity with no roster entry
type UnknownSponsorError struct {
	Email string
}

func (e *UnknownSponsorError) Error() string {
	return fmt.Sprintf("no projects found for %s", e.Email)
}

// DataSourceError reports a failed roster fetch. No partial roster was installed.
type DataSourceError struct {
	Err error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("roster unavailable: %v", e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// AlreadyCompletedError blocks re-editing a submitted project
type AlreadyCompletedError struct {
	Project string
}

func (e *AlreadyCompletedError) Error() string {
	return fmt.Sprintf("project %s is already completed", e.Project)
}

// SubmissionError reports a failed submission. Staged data is untouched.
type SubmissionError struct {
	Project    string
	StatusCode int
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("submission of %s failed with status %d: %v", e.Project, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("submission of %s failed: %v", e.Project, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// PersistenceError reports a durable storage failure. It is logged, never
// returned from session operations.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("progress %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// StatusMessage returns the status line shown to the sponsor for err
func StatusMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		validation  *ValidationError
		unknown     *UnknownSponsorError
		dataSource  *DataSourceError
		completed   *AlreadyCompletedError
		submission  *SubmissionError
		persistence *PersistenceError
	)

	switch {
	case errors.As(err, &validation):
		return validation.Message
	case errors.As(err, &unknown):
		return "No projects found for that email."
	case errors.As(err, &dataSource):
		return "Project data not found. Please try again later."
	case errors.As(err, &completed):
		return "This project is already completed."
	case errors.As(err, &submission):
		return "Submission failed. Please try again."
	case errors.As(err, &persistence):
		return ""
	case errors.Is(err, ErrSubmissionInFlight):
		return "Submitting..."
	case errors.Is(err, ErrNoProject):
		return "No project is loaded."
	case errors.Is(err, ErrNoStudents):
		return "No students to submit."
	case errors.Is(err, ErrNothingRated):
		return "Please rate at least one student before submitting."
	case errors.Is(err, ErrUnknownProject):
		return "That project is not assigned to you."
	case errors.Is(err, ErrInvalidScore):
		return "Scores must be between 1 and 7."
	case errors.Is(err, ErrInvalidState):
		return "That action is not available right now."
	default:
		return "Something went wrong. Please try again."
	}
}

// Retryable reports whether the same action may succeed if repeated unchanged
func Retryable(err error) bool {
	var (
		dataSource *DataSourceError
		submission *SubmissionError
	)
	switch {
	case err == nil:
		return false
	case errors.As(err, &dataSource), errors.As(err, &submission):
		return true
	case errors.Is(err, ErrSubmissionInFlight):
		return true
	default:
		return false
	}
}
