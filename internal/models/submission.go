package models

// SubmissionPayload is the body POSTed to the submission sink for one project
type SubmissionPayload struct {
	SponsorName  string            `json:"sponsorName"`
	SponsorEmail string            `json:"sponsorEmail"`
	Project      string            `json:"project"`
	Rubric       []string          `json:"rubric"`
	Responses    []StudentResponse `json:"responses"`
	Timestamp    string            `json:"timestamp"`
}

// StudentResponse holds one student's ratings keyed by criterion title.
// A nil rating means the criterion was left unrated.
type StudentResponse struct {
	Student string          `json:"student"`
	Ratings map[string]*int `json:"ratings"`
	Comment string          `json:"comment"`
}

// SubmissionReceipt is the best-effort decoded body of a successful submission
type SubmissionReceipt struct {
	StatusCode int            `json:"status_code"`
	Body       map[string]any `json:"body,omitempty"`
}
