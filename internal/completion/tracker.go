// Package completion records which projects a sponsor has already submitted.
package completion

import "sort"

// Tracker is the set of completed project names for one sponsor identity
type Tracker struct {
	done map[string]bool
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{done: make(map[string]bool)}
}

// MarkComplete adds a project. Marking twice is a no-op.
func (t *Tracker) MarkComplete(project string) {
	if project == "" {
		return
	}
	t.done[project] = true
}

// IsComplete reports whether the project was submitted
func (t *Tracker) IsComplete(project string) bool {
	return t.done[project]
}

// AllComplete reports whether every project is complete. An empty project
// list is never complete, so nothing finishes before a roster has loaded.
func (t *Tracker) AllComplete(projects []string) bool {
	if len(projects) == 0 {
		return false
	}
	for _, p := range projects {
		if !t.done[p] {
			return false
		}
	}
	return true
}

// Reset clears the set
func (t *Tracker) Reset() {
	t.done = make(map[string]bool)
}

// Projects returns completed project names, sorted
func (t *Tracker) Projects() []string {
	out := make([]string, 0, len(t.done))
	for p := range t.done {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of completed projects
func (t *Tracker) Len() int {
	return len(t.done)
}
