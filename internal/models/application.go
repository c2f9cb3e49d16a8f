// internal/models/application.go
package models

import "time"

// ApplicationStatus mirrors the review state machine. Terminal statuses accept
// no further transitions.
type ApplicationStatus string

const (
	StatusDraft              ApplicationStatus = "draft"
	StatusSubmitted          ApplicationStatus = "submitted"
	StatusEligibilityCheck   ApplicationStatus = "eligibility_check"
	StatusConstituencyReview ApplicationStatus = "constituency_review"
	StatusRegionalReview     ApplicationStatus = "regional_review"
	StatusNationalReview     ApplicationStatus = "national_review"
	StatusChangesRequested   ApplicationStatus = "changes_requested"
	StatusApproved           ApplicationStatus = "approved"
	StatusEnrolled           ApplicationStatus = "enrolled"
	StatusRejected           ApplicationStatus = "rejected"
	StatusWithdrawn          ApplicationStatus = "withdrawn"
)

// IsTerminal reports whether the status accepts no further transitions.
func (s ApplicationStatus) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusEnrolled, StatusRejected, StatusWithdrawn:
		return true
	}
	return false
}

// InReview reports whether the status is one of the stage review statuses.
func (s ApplicationStatus) InReview() bool {
	switch s {
	case StatusConstituencyReview, StatusRegionalReview, StatusNationalReview:
		return true
	}
	return false
}

// ContactChannel is a reachable address plus its verification state. Verified
// channels earn priority points during scoring.
type ContactChannel struct {
	Address  string `json:"address,omitempty"`
	Verified bool   `json:"verified"`
}

// FarmProfile is the domain payload an applicant submits: where the farm is,
// how it operates today, and how the applicant can be reached. RiskScore is an
// opaque external spam/fraud signal; nil means no signal was supplied.
type FarmProfile struct {
	FarmName        string         `json:"farmName,omitempty"`
	County          string         `json:"county"`
	Constituency    string         `json:"constituency"`
	Ward            string         `json:"ward,omitempty"`
	ApplicantAge    int            `json:"applicantAge"`
	MonthsFarming   int            `json:"monthsFarming"`
	FlockSize       int            `json:"flockSize"`
	HousingCapacity int            `json:"housingCapacity"`
	HasCoop         bool           `json:"hasCoop"`
	PriorExperience bool           `json:"priorExperience"`
	Email           ContactChannel `json:"email"`
	Phone           ContactChannel `json:"phone"`
	RiskScore       *float64       `json:"riskScore,omitempty"`
}

// StageApproval records who approved a stage and when.
type StageApproval struct {
	ApproverID string    `json:"approverId"`
	ApprovedAt time.Time `json:"approvedAt"`
	Notes      string    `json:"notes,omitempty"`
}

type Application struct {
	ID          string      `json:"id"`
	Number      string      `json:"number"`
	TrackID     string      `json:"trackId"`
	ProgramID   string      `json:"programId,omitempty"`
	ApplicantID string      `json:"applicantId"`
	Profile     FarmProfile `json:"profile"`

	Status       ApplicationStatus `json:"status"`
	CurrentStage *Stage            `json:"currentStage,omitempty"`

	PriorityScore    int      `json:"priorityScore"`
	EligibilityScore int      `json:"eligibilityScore"`
	EligibilityFlags []string `json:"eligibilityFlags,omitempty"`
	MeetsEligibility *bool    `json:"meetsEligibility,omitempty"`

	StageApprovals map[Stage]StageApproval `json:"stageApprovals,omitempty"`

	RejectionReason  string     `json:"rejectionReason,omitempty"`
	RejectionNotes   string     `json:"rejectionNotes,omitempty"`
	ChangesRequested string     `json:"changesRequested,omitempty"`
	ChangesDeadline  *time.Time `json:"changesDeadline,omitempty"`

	SubmittedAt   time.Time  `json:"submittedAt"`
	ResubmittedAt *time.Time `json:"resubmittedAt,omitempty"`
	DecidedAt     *time.Time `json:"decidedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`

	// Version is the optimistic concurrency token. Every persisted write bumps
	// it; writers carry the version they read and conflict if it moved.
	Version int `json:"version"`
}

// AtStage reports whether the application is currently under review at stage.
func (a *Application) AtStage(stage Stage) bool {
	return a.CurrentStage != nil && *a.CurrentStage == stage && a.Status.InReview()
}
