// Package roster resolves which projects and students each sponsor evaluates.
package roster

import (
	"strings"

	"github.com/google/uuid"

	"github.com/terra-clan/sponsor-eval/internal/models"
)

// studentNamespace seeds the name-based UUIDs handed out to students
var studentNamespace = uuid.MustParse("6f1a3c52-9d4e-4b7a-8f0e-2c5d7b9a1e34")

// Student is one roster member with an identifier that survives reordering
type Student struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StudentID derives the stable identifier of a student within a project
func StudentID(project, name string) string {
	return uuid.NewSHA1(studentNamespace, []byte(project+"\x00"+name)).String()
}

// NormalizeEmail lowercases and trims a sponsor email
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Sponsor is the roster of one sponsor identity
type Sponsor struct {
	Email    string
	order    []string
	projects map[string][]Student
}

// Projects returns project names in first-seen order
func (s *Sponsor) Projects() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Students returns the ordered students of a project
func (s *Sponsor) Students(project string) ([]Student, bool) {
	students, ok := s.projects[project]
	if !ok {
		return nil, false
	}
	out := make([]Student, len(students))
	copy(out, students)
	return out, true
}

// Has reports whether the sponsor has the project
func (s *Sponsor) Has(project string) bool {
	_, ok := s.projects[project]
	return ok
}

// Len returns the number of projects
func (s *Sponsor) Len() int {
	return len(s.order)
}

// Index maps sponsor identities to their rosters. It is immutable once built.
type Index struct {
	sponsors map[string]*Sponsor
}

// Build constructs an Index from raw assignment rows. Rows missing any field
// are dropped; duplicate students within a project keep their first position.
func Build(rows []models.AssignmentRow) *Index {
	idx := &Index{sponsors: make(map[string]*Sponsor)}

	for _, r := range rows {
		email := NormalizeEmail(r.SponsorEmail)
		project := strings.TrimSpace(r.Project)
		student := strings.TrimSpace(r.Student)
		if email == "" || project == "" || student == "" {
			continue
		}

		sp, ok := idx.sponsors[email]
		if !ok {
			sp = &Sponsor{Email: email, projects: make(map[string][]Student)}
			idx.sponsors[email] = sp
		}

		students, ok := sp.projects[project]
		if !ok {
			sp.order = append(sp.order, project)
		}
		if containsName(students, student) {
			continue
		}
		sp.projects[project] = append(students, Student{
			ID:   StudentID(project, student),
			Name: student,
		})
	}

	return idx
}

// Lookup returns the roster for an email. A missing identity is a normal
// outcome and reported through ok.
func (i *Index) Lookup(email string) (*Sponsor, bool) {
	if i == nil {
		return nil, false
	}
	sp, ok := i.sponsors[NormalizeEmail(email)]
	return sp, ok
}

// Len returns the number of sponsors
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.sponsors)
}

func containsName(students []Student, name string) bool {
	for _, s := range students {
		if s.Name == name {
			return true
		}
	}
	return false
}
