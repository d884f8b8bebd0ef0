package models

// AssignmentRow is one sponsor → project → student assignment as delivered by the roster source
type AssignmentRow struct {
	SponsorEmail string `json:"sponsorEmail"`
	Project      string `json:"project"`
	Student      string `json:"student"`
}

// Complete reports whether the row carries all three fields
func (r AssignmentRow) Complete() bool {
	return r.SponsorEmail != "" && r.Project != "" && r.Student != ""
}
