// internal/models/track.go
package models

// TrackKind separates first-time farmer screening from enrollment of existing
// farmers into a program. The review machinery is identical; tracks differ in
// stage list, eligibility pre-check, and numbering.
type TrackKind string

const (
	TrackNewFarmer         TrackKind = "new_farmer"
	TrackProgramEnrollment TrackKind = "program_enrollment"
)

// TrackDefinition parametrizes the workflow engine for one application track.
// Stages is an ordered subset of the canonical sequence; enrollment tracks may
// omit the constituency tier ("skip constituency" program configuration).
type TrackDefinition struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name"`
	Kind                TrackKind     `json:"kind"`
	NumberPrefix        string        `json:"numberPrefix"`
	ProgramID           string        `json:"programId,omitempty"`
	Stages              []Stage       `json:"stages"`
	RequiresEligibility bool          `json:"requiresEligibility"`
	StageSLADays        map[Stage]int `json:"stageSlaDays,omitempty"`
	ChangesDeadlineDays int           `json:"changesDeadlineDays,omitempty"`
}

// FirstStage returns the entry stage for the track.
func (t *TrackDefinition) FirstStage() (Stage, bool) {
	if len(t.Stages) == 0 {
		return "", false
	}
	return t.Stages[0], true
}

// NextStage returns the stage after current, or false at the final stage.
func (t *TrackDefinition) NextStage(current Stage) (Stage, bool) {
	for i, s := range t.Stages {
		if s == current && i+1 < len(t.Stages) {
			return t.Stages[i+1], true
		}
	}
	return "", false
}

// HasStage reports whether the track includes the given stage.
func (t *TrackDefinition) HasStage(stage Stage) bool {
	for _, s := range t.Stages {
		if s == stage {
			return true
		}
	}
	return false
}
