// internal/scoring/eligibility.go
package scoring

import (
	"fmt"
	"time"

	"poultry-review-engine/internal/models"
)

// EligibilityResult is the outcome of the automated enrollment pre-check.
// Flags are human-readable, one per violated criterion, and end up in the
// application record and the rejection notice.
type EligibilityResult struct {
	Score  int      `json:"score"`
	Flags  []string `json:"flags,omitempty"`
	Passed bool     `json:"passed"`
}

// EvaluateEligibility checks an application against program admission
// criteria. It starts from the ceiling and subtracts a weighted penalty per
// violated criterion; passing means the remaining score clears the
// threshold. Pure; runs only for tracks that require the pre-check.
func EvaluateEligibility(app *models.Application, criteria models.ProgramCriteria, cfg EligibilityConfig, now time.Time) EligibilityResult {
	score := cfg.Ceiling
	var flags []string

	profile := app.Profile

	if outOfRange(profile.ApplicantAge, criteria.MinAge, criteria.MaxAge) {
		score -= cfg.AgePenalty
		flags = append(flags, fmt.Sprintf(
			"applicant age %d outside allowed range %s",
			profile.ApplicantAge, rangeText(criteria.MinAge, criteria.MaxAge)))
	}

	if outOfRange(profile.MonthsFarming, criteria.MinMonthsFarming, criteria.MaxMonthsFarming) {
		score -= cfg.DurationPenalty
		flags = append(flags, fmt.Sprintf(
			"operating duration %d months outside required range %s",
			profile.MonthsFarming, rangeText(criteria.MinMonthsFarming, criteria.MaxMonthsFarming)))
	}

	if outOfRange(profile.HousingCapacity, criteria.MinCapacity, criteria.MaxCapacity) {
		score -= cfg.CapacityPenalty
		flags = append(flags, fmt.Sprintf(
			"housing capacity %d outside required range %s",
			profile.HousingCapacity, rangeText(criteria.MinCapacity, criteria.MaxCapacity)))
	}

	if !criteria.CountyEligible(profile.County) {
		score -= cfg.LocationPenalty
		flags = append(flags, fmt.Sprintf(
			"county %q is not in the program's eligible counties", profile.County))
	}

	if criteria.Deadline != nil && now.After(*criteria.Deadline) {
		score -= cfg.DeadlinePenalty
		flags = append(flags, fmt.Sprintf(
			"submitted after the program deadline %s", criteria.Deadline.Format("2006-01-02")))
	}

	if criteria.RemainingSlots != nil && *criteria.RemainingSlots <= 0 {
		score -= cfg.SlotsPenalty
		flags = append(flags, "program has no remaining slots")
	}

	score = clamp(score, 0, cfg.Ceiling)

	return EligibilityResult{
		Score:  score,
		Flags:  flags,
		Passed: score >= cfg.PassThreshold,
	}
}

// outOfRange checks value against an inclusive range; zero bounds are not
// enforced.
func outOfRange(value, min, max int) bool {
	if min > 0 && value < min {
		return true
	}
	if max > 0 && value > max {
		return true
	}
	return false
}

func rangeText(min, max int) string {
	switch {
	case min > 0 && max > 0:
		return fmt.Sprintf("%d-%d", min, max)
	case min > 0:
		return fmt.Sprintf("at least %d", min)
	case max > 0:
		return fmt.Sprintf("at most %d", max)
	}
	return "unbounded"
}
