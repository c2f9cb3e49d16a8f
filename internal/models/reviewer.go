// internal/models/reviewer.go
package models

// ReviewerRole is what a reviewer is allowed to decide. Program admins may act
// at any stage.
type ReviewerRole string

const (
	RoleConstituencyOfficer ReviewerRole = "constituency_officer"
	RoleRegionalOfficer     ReviewerRole = "regional_officer"
	RoleNationalOfficer     ReviewerRole = "national_officer"
	RoleProgramAdmin        ReviewerRole = "program_admin"
)

// Reviewer is an external identity supplied by the directory collaborator.
// Load (open items assigned) is derived from work-item state, never stored
// here.
type Reviewer struct {
	ID     string       `json:"id"`
	Name   string       `json:"name,omitempty"`
	Email  string       `json:"email,omitempty"`
	Phone  string       `json:"phone,omitempty"`
	Role   ReviewerRole `json:"role"`
	Active bool         `json:"active"`
}
