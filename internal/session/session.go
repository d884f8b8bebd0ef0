// Package session implements the evaluation state machine of one browser
// context: identity entry, project browsing, draft editing and submission.
package session

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/terra-clan/sponsor-eval/internal/completion"
	"github.com/terra-clan/sponsor-eval/internal/draft"
	"github.com/terra-clan/sponsor-eval/internal/models"
	"github.com/terra-clan/sponsor-eval/internal/progress"
	"github.com/terra-clan/sponsor-eval/internal/remote"
	"github.com/terra-clan/sponsor-eval/internal/roster"
	"github.com/terra-clan/sponsor-eval/internal/rubric"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// timestampLayout matches the millisecond ISO-8601 form browsers emit
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Sink accepts one project's ratings
type Sink interface {
	Submit(ctx context.Context, payload models.SubmissionPayload) (*models.SubmissionReceipt, error)
}

// Persister loads and overwrites the durable progress record
type Persister interface {
	Load(ctx context.Context) (progress.Record, bool, error)
	Save(ctx context.Context, rec progress.Record) error
}

// Options are the policy switches that differ between deployments
type Options struct {
	// RequireRating rejects submitting a project with no staged score
	RequireRating bool
	// ResetClearsIdentity makes Reset forget the name and email too
	ResetClearsIdentity bool
}

// Deps are the collaborators of a session
type Deps struct {
	Roster   roster.Loader
	Sink     Sink
	Progress Persister
	Rubric   *rubric.Rubric
	Now      func() time.Time
}

// Session is the evaluation state of one browser context. It is safe for
// concurrent use; the sink is called without holding the session lock.
type Session struct {
	deps Deps
	opts Options

	mu         sync.Mutex
	state      State
	name       string
	email      string
	project    string
	sponsor    *roster.Sponsor
	drafts     *draft.Store
	completed  *completion.Tracker
	submitting bool

	// read without s.mu by the host registry
	inFlight    atomic.Bool
	subscribers atomic.Int32

	listeners map[int]Listener
	nextSub   int
	pending   []models.SessionEvent
}

// New creates a session in AwaitingIdentity with empty state
func New(deps Deps, opts Options) *Session {
	if deps.Rubric == nil {
		deps.Rubric = rubric.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Session{
		deps:      deps,
		opts:      opts,
		state:     StateAwaitingIdentity,
		drafts:    draft.NewStore(),
		completed: completion.NewTracker(),
		listeners: make(map[int]Listener),
	}
}

// Start loads persisted progress. When the stored identity is in the roster
// the session resumes browsing; otherwise it waits for an identity with the
// stored name and email pre-filled. Storage and fetch failures are logged.
func (s *Session) Start(ctx context.Context) error {
	return s.do(func() error {
		if s.state != StateAwaitingIdentity || s.submitting {
			return ErrInvalidState
		}

		rec, found, err := s.deps.Progress.Load(ctx)
		if err != nil {
			slog.Warn("failed to load progress", "error", &PersistenceError{Op: "load", Err: err})
			return nil
		}
		if !found || rec.Email == "" {
			return nil
		}

		s.name = rec.Name
		s.email = roster.NormalizeEmail(rec.Email)
		s.drafts.Import(rec.Drafts)
		s.completed.Reset()
		for _, p := range rec.Completed {
			s.completed.MarkComplete(p)
		}
		s.emit(EventIdentityChanged, "")

		if err := s.resolve(ctx); err != nil {
			slog.Info("session resume stopped at identity", "email", s.email, "error", err)
			return nil
		}

		slog.Info("session resumed", "email", s.email, "state", s.state)
		return nil
	})
}

// SubmitIdentity validates and stores the sponsor identity, then resolves the
// sponsor's roster. A new email discards the previous identity's drafts and
// completion set.
func (s *Session) SubmitIdentity(ctx context.Context, name, email string) error {
	return s.do(func() error {
		if s.submitting {
			return ErrSubmissionInFlight
		}
		if s.state != StateAwaitingIdentity {
			return ErrInvalidState
		}

		name = strings.TrimSpace(name)
		email = roster.NormalizeEmail(email)
		if name == "" {
			return &ValidationError{Field: "name", Message: "Please enter your name."}
		}
		if !emailPattern.MatchString(email) {
			return &ValidationError{Field: "email", Message: "Please enter a valid email."}
		}

		if s.email != "" && s.email != email {
			slog.Info("sponsor identity switched", "from", s.email, "to", email)
			s.drafts.Reset()
			s.completed.Reset()
		}
		changed := s.name != name || s.email != email
		s.name = name
		s.email = email
		s.project = ""
		s.persist(ctx)
		if changed {
			s.emit(EventIdentityChanged, "")
		}

		return s.resolve(ctx)
	})
}

// resolve installs the sponsor roster for the current email and enters
// browsing; must hold s.mu
func (s *Session) resolve(ctx context.Context) error {
	s.sponsor = nil

	idx, err := s.deps.Roster.Load(ctx)
	if err != nil {
		return &DataSourceError{Err: err}
	}

	sp, ok := idx.Lookup(s.email)
	if !ok {
		return &UnknownSponsorError{Email: s.email}
	}
	s.sponsor = sp

	criteria := s.deps.Rubric.Criteria()
	reconciled := false
	for _, p := range s.drafts.Projects() {
		students, _ := sp.Students(p)
		if s.drafts.Reconcile(p, students, criteria) {
			reconciled = true
		}
	}
	if reconciled {
		s.persist(ctx)
	}

	if s.completed.AllComplete(sp.Projects()) {
		s.transition(StateAllComplete)
	} else {
		s.transition(StateBrowsingProjects)
	}
	return nil
}

// Projects lists the sponsor's projects, incomplete first, otherwise in
// roster order
func (s *Session) Projects() []models.ProjectEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectsLocked()
}

func (s *Session) projectsLocked() []models.ProjectEntry {
	if s.sponsor == nil {
		return []models.ProjectEntry{}
	}

	names := s.sponsor.Projects()
	entries := make([]models.ProjectEntry, 0, len(names))
	for _, p := range names {
		students, _ := s.sponsor.Students(p)
		list := make([]string, len(students))
		for i, st := range students {
			list[i] = st.Name
		}
		entries = append(entries, models.ProjectEntry{
			Name:      p,
			Completed: s.completed.IsComplete(p),
			Students:  list,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return !entries[i].Completed && entries[j].Completed
	})
	return entries
}

// SelectProject opens an incomplete project for editing
func (s *Session) SelectProject(project string) error {
	return s.do(func() error {
		if s.submitting {
			return ErrSubmissionInFlight
		}
		if s.state != StateBrowsingProjects && s.state != StateEditingProject {
			return ErrInvalidState
		}
		if s.sponsor == nil || !s.sponsor.Has(project) {
			return ErrUnknownProject
		}
		if s.completed.IsComplete(project) {
			return &AlreadyCompletedError{Project: project}
		}

		s.project = project
		s.transition(StateEditingProject)
		return nil
	})
}

// SetScore stages a score for the student and criterion at the given
// positions of the open project
func (s *Session) SetScore(ctx context.Context, studentIndex, criterionIndex, score int) error {
	return s.do(func() error {
		if err := s.editable(); err != nil {
			return err
		}

		students, _ := s.sponsor.Students(s.project)
		if studentIndex < 0 || studentIndex >= len(students) {
			return &ValidationError{Field: "student_index", Message: "Unknown student."}
		}
		crit, ok := s.deps.Rubric.At(criterionIndex)
		if !ok {
			return &ValidationError{Field: "criterion_index", Message: "Unknown criterion."}
		}

		if err := s.drafts.SetScore(s.project, students[studentIndex].ID, crit.ID, score); err != nil {
			return err
		}

		s.persist(ctx)
		s.emit(EventDraftChanged, "")
		return nil
	})
}

// SetComment replaces the comment of the open project verbatim
func (s *Session) SetComment(ctx context.Context, text string) error {
	return s.do(func() error {
		if err := s.editable(); err != nil {
			return err
		}

		s.drafts.SetComment(s.project, text)
		s.persist(ctx)
		s.emit(EventDraftChanged, "")
		return nil
	})
}

// editable checks that a project is open and nothing is being submitted;
// must hold s.mu
func (s *Session) editable() error {
	if s.submitting {
		return ErrSubmissionInFlight
	}
	if s.state != StateEditingProject || s.project == "" {
		return ErrNoProject
	}
	return nil
}

// Draft returns the staged state of the open project
func (s *Session) Draft() (models.DraftView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.project == "" || s.sponsor == nil {
		return models.DraftView{}, ErrNoProject
	}
	return s.snapshotLocked(s.project), nil
}

func (s *Session) snapshotLocked(project string) models.DraftView {
	students, _ := s.sponsor.Students(project)
	return s.drafts.Snapshot(project, students, s.deps.Rubric.Criteria())
}

// Submit sends the open project to the sink. On success the project is
// marked complete and its draft discarded; on failure the session returns to
// editing with the draft untouched.
func (s *Session) Submit(ctx context.Context) (*models.SubmissionReceipt, error) {
	var (
		payload models.SubmissionPayload
		project string
	)

	err := s.do(func() error {
		if s.submitting {
			return ErrSubmissionInFlight
		}
		if s.state != StateEditingProject || s.project == "" {
			return ErrNoProject
		}

		project = s.project
		students, _ := s.sponsor.Students(project)
		if len(students) == 0 {
			return ErrNoStudents
		}
		if s.opts.RequireRating && !s.anyRatedLocked(project, students) {
			return ErrNothingRated
		}

		payload = s.payloadLocked(project)
		s.submitting = true
		s.inFlight.Store(true)
		s.transition(StateSubmitting)
		s.emit(EventStateChanged, "Submitting...")
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("submitting project", "email", payload.SponsorEmail, "project", project, "students", len(payload.Responses))
	receipt, sendErr := s.deps.Sink.Submit(ctx, payload)

	var result error
	s.do(func() error {
		s.submitting = false
		s.inFlight.Store(false)

		if sendErr != nil {
			subErr := &SubmissionError{Project: project, Err: sendErr}
			var statusErr *remote.StatusError
			if errors.As(sendErr, &statusErr) {
				subErr.StatusCode = statusErr.StatusCode
			}
			result = subErr

			slog.Error("submission failed", "email", payload.SponsorEmail, "project", project, "error", sendErr)
			s.transition(StateEditingProject)
			s.emit(EventSubmissionFailed, StatusMessage(subErr))
			return nil
		}

		s.completed.MarkComplete(project)
		s.drafts.Discard(project)
		s.project = ""
		s.persist(ctx)

		if s.completed.AllComplete(s.sponsor.Projects()) {
			s.transition(StateAllComplete)
		} else {
			s.transition(StateBrowsingProjects)
		}
		slog.Info("project submitted", "email", payload.SponsorEmail, "project", project, "state", s.state)
		s.emit(EventStateChanged, "Submission saved. Thank you!")
		return nil
	})

	if result != nil {
		return nil, result
	}
	return receipt, nil
}

func (s *Session) anyRatedLocked(project string, students []roster.Student) bool {
	for _, st := range students {
		for _, c := range s.deps.Rubric.Criteria() {
			if _, ok := s.drafts.Score(project, st.ID, c.ID); ok {
				return true
			}
		}
	}
	return false
}

// payloadLocked builds the submission body from the current snapshot
func (s *Session) payloadLocked(project string) models.SubmissionPayload {
	titles := s.deps.Rubric.Titles()
	snap := s.snapshotLocked(project)

	responses := make([]models.StudentResponse, 0, len(snap.Rows))
	for _, row := range snap.Rows {
		ratings := make(map[string]*int, len(titles))
		for i, title := range titles {
			ratings[title] = row.Scores[i]
		}
		responses = append(responses, models.StudentResponse{
			Student: row.Student,
			Ratings: ratings,
			Comment: snap.Comment,
		})
	}

	return models.SubmissionPayload{
		SponsorName:  s.name,
		SponsorEmail: s.email,
		Project:      project,
		Rubric:       titles,
		Responses:    responses,
		Timestamp:    s.deps.Now().UTC().Format(timestampLayout),
	}
}

// ReturnToIdentity goes back to identity entry keeping identity, drafts and
// completion
func (s *Session) ReturnToIdentity() error {
	return s.do(func() error {
		if s.submitting {
			return ErrSubmissionInFlight
		}
		if s.state != StateBrowsingProjects && s.state != StateEditingProject {
			return ErrInvalidState
		}

		s.project = ""
		s.transition(StateAwaitingIdentity)
		return nil
	})
}

// Reset starts over: completion and drafts are cleared and the session waits
// for an identity. The name and email survive unless ResetClearsIdentity.
func (s *Session) Reset(ctx context.Context) error {
	return s.do(func() error {
		if s.submitting {
			return ErrSubmissionInFlight
		}

		s.drafts.Reset()
		s.completed.Reset()
		s.project = ""
		s.sponsor = nil
		if s.opts.ResetClearsIdentity {
			s.name = ""
			s.email = ""
			s.emit(EventIdentityChanged, "")
		}
		s.persist(ctx)

		if s.state != StateAwaitingIdentity {
			s.transition(StateAwaitingIdentity)
		}
		slog.Info("session reset", "clears_identity", s.opts.ResetClearsIdentity)
		return nil
	})
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// View returns everything a view needs to render the session
func (s *Session) View() models.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := models.SessionView{
		State:          string(s.state),
		Name:           s.name,
		Email:          s.email,
		CurrentProject: s.project,
		Submitting:     s.submitting,
		Projects:       s.projectsLocked(),
	}
	if s.project != "" && s.sponsor != nil {
		snap := s.snapshotLocked(s.project)
		v.Draft = &snap
	}
	return v
}

// Evictable reports whether the session has no submission in flight and no
// subscribers. It does not take the session lock.
func (s *Session) Evictable() bool {
	return !s.inFlight.Load() && s.subscribers.Load() == 0
}

// IsComplete reports whether the project was submitted
func (s *Session) IsComplete(project string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed.IsComplete(project)
}

// transition moves to a new state and queues a state_changed event; must hold s.mu
func (s *Session) transition(to State) {
	if !isTransitionAllowed(s.state, to) {
		slog.Error("illegal session transition", "from", s.state, "to", to)
		return
	}
	s.state = to
	if to != StateSubmitting {
		s.emit(EventStateChanged, "")
	}
}

// persist writes the durable record; failures are logged only. Must hold s.mu.
func (s *Session) persist(ctx context.Context) {
	rec := progress.Record{
		Name:      s.name,
		Email:     s.email,
		Completed: s.completed.Projects(),
		Drafts:    s.drafts.Export(),
	}
	if err := s.deps.Progress.Save(ctx, rec); err != nil {
		slog.Warn("failed to persist progress", "error", &PersistenceError{Op: "save", Err: err})
	}
}
