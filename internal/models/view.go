package models

// ProjectEntry is one row of the project list shown while browsing
type ProjectEntry struct {
	Name      string   `json:"name"`
	Completed bool     `json:"completed"`
	Students  []string `json:"students"`
}

// DraftRow is the staged state of one student within a project.
// Scores follow rubric order; nil means not yet rated.
type DraftRow struct {
	StudentID string `json:"student_id"`
	Student   string `json:"student"`
	Scores    []*int `json:"scores"`
}

// DraftView is the staged state of a whole project
type DraftView struct {
	Project string     `json:"project"`
	Rows    []DraftRow `json:"rows"`
	Comment string     `json:"comment"`
}

// SessionView is the full state a view needs to render the form
type SessionView struct {
	State          string         `json:"state"`
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	CurrentProject string         `json:"current_project,omitempty"`
	Submitting     bool           `json:"submitting"`
	Projects       []ProjectEntry `json:"projects"`
	Draft          *DraftView     `json:"draft,omitempty"`
}

// SessionEvent is a state-change notification pushed to the view
type SessionEvent struct {
	Type    string `json:"type"`
	State   string `json:"state"`
	Project string `json:"project,omitempty"`
	Message string `json:"message,omitempty"`
}

// IdentityRequest is the body of an identity submission
type IdentityRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SelectProjectRequest opens a project for editing
type SelectProjectRequest struct {
	Project string `json:"project"`
}

// ScoreRequest stages one score. Indices are positional within the current
// roster and rubric order.
type ScoreRequest struct {
	StudentIndex   int `json:"student_index"`
	CriterionIndex int `json:"criterion_index"`
	Score          int `json:"score"`
}

// CommentRequest replaces the project comment
type CommentRequest struct {
	Comment string `json:"comment"`
}

// ContextResponse is returned when a new browser context is opened
type ContextResponse struct {
	Token string `json:"token"`
}

// SubmitResponse is returned when a project was accepted by the sink
type SubmitResponse struct {
	Receipt *SubmissionReceipt `json:"receipt"`
	Session SessionView        `json:"session"`
}

// RefreshResponse is returned after the roster was refetched
type RefreshResponse struct {
	Sponsors int `json:"sponsors"`
}
