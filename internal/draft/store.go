// Package draft stages ratings that have not been submitted yet.
//
// Scores are keyed by stable student and criterion identifiers, so a roster
// that is reordered between edits never shifts a score onto another student.
// Store is not safe for concurrent use; the owning session serializes access.
package draft

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/terra-clan/sponsor-eval/internal/models"
	"github.com/terra-clan/sponsor-eval/internal/roster"
	"github.com/terra-clan/sponsor-eval/internal/rubric"
)

var (
	ErrInvalidScore = errors.New("score must be an integer between 1 and 7")
	ErrMissingKey   = errors.New("project, student and criterion are required")
)

// ProjectState is the staged state of one project
type ProjectState struct {
	// Scores maps student id -> criterion id -> score
	Scores map[string]map[string]int
	// Comment is the project-level comment, stored verbatim
	Comment string
	// Legacy holds positional scores (student index -> criterion index -> score)
	// read from records that predate stable identifiers
	Legacy map[int]map[int]int
}

func (p *ProjectState) empty() bool {
	return len(p.Scores) == 0 && len(p.Legacy) == 0 && p.Comment == ""
}

func (p *ProjectState) clone() ProjectState {
	out := ProjectState{Comment: p.Comment}
	if len(p.Scores) > 0 {
		out.Scores = make(map[string]map[string]int, len(p.Scores))
		for sid, crit := range p.Scores {
			m := make(map[string]int, len(crit))
			for cid, v := range crit {
				m[cid] = v
			}
			out.Scores[sid] = m
		}
	}
	if len(p.Legacy) > 0 {
		out.Legacy = make(map[int]map[int]int, len(p.Legacy))
		for si, crit := range p.Legacy {
			m := make(map[int]int, len(crit))
			for ci, v := range crit {
				m[ci] = v
			}
			out.Legacy[si] = m
		}
	}
	return out
}

// Store is the staged-ratings table of one sponsor identity
type Store struct {
	projects map[string]*ProjectState
}

// NewStore creates an empty draft store
func NewStore() *Store {
	return &Store{projects: make(map[string]*ProjectState)}
}

// project returns the entry for name, creating it on first edit
func (s *Store) project(name string) *ProjectState {
	p, ok := s.projects[name]
	if !ok {
		p = &ProjectState{}
		s.projects[name] = p
	}
	return p
}

// SetScore stages a score, overwriting any earlier value for the same cell
func (s *Store) SetScore(project, studentID, criterionID string, score int) error {
	if project == "" || studentID == "" || criterionID == "" {
		return ErrMissingKey
	}
	if !rubric.ValidScore(score) {
		return fmt.Errorf("%w: got %d", ErrInvalidScore, score)
	}

	p := s.project(project)
	if p.Scores == nil {
		p.Scores = make(map[string]map[string]int)
	}
	crit, ok := p.Scores[studentID]
	if !ok {
		crit = make(map[string]int)
		p.Scores[studentID] = crit
	}
	crit[criterionID] = score
	return nil
}

// Score returns the staged score for a cell
func (s *Store) Score(project, studentID, criterionID string) (int, bool) {
	p, ok := s.projects[project]
	if !ok {
		return 0, false
	}
	v, ok := p.Scores[studentID][criterionID]
	return v, ok
}

// SetComment replaces the project comment verbatim
func (s *Store) SetComment(project, text string) {
	if project == "" {
		return
	}
	s.project(project).Comment = text
}

// Comment returns the staged comment, or the empty string
func (s *Store) Comment(project string) string {
	if p, ok := s.projects[project]; ok {
		return p.Comment
	}
	return ""
}

// Has reports whether anything is staged for the project
func (s *Store) Has(project string) bool {
	p, ok := s.projects[project]
	return ok && !p.empty()
}

// Snapshot returns, for every student in roster order and every criterion in
// rubric order, the staged score or nil, plus the comment
func (s *Store) Snapshot(project string, students []roster.Student, criteria []rubric.Criterion) models.DraftView {
	view := models.DraftView{
		Project: project,
		Rows:    make([]models.DraftRow, 0, len(students)),
		Comment: s.Comment(project),
	}

	for _, st := range students {
		row := models.DraftRow{
			StudentID: st.ID,
			Student:   st.Name,
			Scores:    make([]*int, len(criteria)),
		}
		for i, c := range criteria {
			if v, ok := s.Score(project, st.ID, c.ID); ok {
				score := v
				row.Scores[i] = &score
			}
		}
		view.Rows = append(view.Rows, row)
	}

	return view
}

// Discard deletes all staged state for the project
func (s *Store) Discard(project string) {
	delete(s.projects, project)
}

// Reset deletes all staged state
func (s *Store) Reset() {
	s.projects = make(map[string]*ProjectState)
}

// SetLegacyScore stages a positional score awaiting Reconcile
func (s *Store) SetLegacyScore(project string, studentIndex, criterionIndex, score int) error {
	if project == "" || studentIndex < 0 || criterionIndex < 0 {
		return ErrMissingKey
	}
	if !rubric.ValidScore(score) {
		return fmt.Errorf("%w: got %d", ErrInvalidScore, score)
	}

	p := s.project(project)
	if p.Legacy == nil {
		p.Legacy = make(map[int]map[int]int)
	}
	crit, ok := p.Legacy[studentIndex]
	if !ok {
		crit = make(map[int]int)
		p.Legacy[studentIndex] = crit
	}
	crit[criterionIndex] = score
	return nil
}

// Reconcile converts positional scores of a project to stable keys using the
// given roster and rubric order. Scores already staged under stable keys win.
// It reports whether anything was converted or dropped.
func (s *Store) Reconcile(project string, students []roster.Student, criteria []rubric.Criterion) bool {
	p, ok := s.projects[project]
	if !ok || len(p.Legacy) == 0 {
		return false
	}

	dropped := 0
	for si, crit := range p.Legacy {
		if si >= len(students) {
			dropped += len(crit)
			continue
		}
		for ci, v := range crit {
			if ci >= len(criteria) {
				dropped++
				continue
			}
			if _, exists := s.Score(project, students[si].ID, criteria[ci].ID); exists {
				continue
			}
			_ = s.SetScore(project, students[si].ID, criteria[ci].ID, v)
		}
	}
	p.Legacy = nil
	if dropped > 0 {
		slog.Info("discarded legacy scores outside the current roster",
			"project", project,
			"students", len(students),
			"scores", dropped,
		)
	}

	if p.empty() {
		delete(s.projects, project)
	}
	return true
}

// Projects returns the names of projects with staged state
func (s *Store) Projects() []string {
	names := make([]string, 0, len(s.projects))
	for name, p := range s.projects {
		if !p.empty() {
			names = append(names, name)
		}
	}
	return names
}

// Export returns a deep copy of all staged state
func (s *Store) Export() map[string]ProjectState {
	out := make(map[string]ProjectState, len(s.projects))
	for name, p := range s.projects {
		if p.empty() {
			continue
		}
		out[name] = p.clone()
	}
	return out
}

// Import replaces all staged state with a deep copy of projects
func (s *Store) Import(projects map[string]ProjectState) {
	s.projects = make(map[string]*ProjectState, len(projects))
	for name, p := range projects {
		if name == "" || p.empty() {
			continue
		}
		cp := p.clone()
		s.projects[name] = &cp
	}
}
