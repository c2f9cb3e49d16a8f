// internal/models/stage.go
package models

// Stage is one level of the review sequence. Eligibility is an automated
// pre-check, not a human review tier; it appears here so SLA configuration can
// address it uniformly.
type Stage string

const (
	StageEligibility  Stage = "eligibility"
	StageConstituency Stage = "constituency"
	StageRegional     Stage = "regional"
	StageNational     Stage = "national"
)

// ReviewStages is the full human review sequence in canonical order. Tracks
// choose an ordered subset; the order itself is fixed.
var ReviewStages = []Stage{StageConstituency, StageRegional, StageNational}

// ReviewStatus maps a review stage to the application status that represents
// sitting at that stage.
func (s Stage) ReviewStatus() ApplicationStatus {
	switch s {
	case StageConstituency:
		return StatusConstituencyReview
	case StageRegional:
		return StatusRegionalReview
	case StageNational:
		return StatusNationalReview
	}
	return StatusEligibilityCheck
}

// StageRank returns the stage's position in the canonical sequence, or -1 for
// stages outside it. Used to enforce forward-only advancement.
func StageRank(s Stage) int {
	for i, st := range ReviewStages {
		if st == s {
			return i
		}
	}
	return -1
}

// ValidStage reports whether s names a known review stage.
func ValidStage(s Stage) bool {
	return StageRank(s) >= 0
}
