// internal/scoring/config.go
package scoring

import "poultry-review-engine/internal/common/config"

// PriorityWeights are the additive point contributions for queue priority.
// Values are tuning knobs, not contracts; the defaults mirror program policy.
type PriorityWeights struct {
	VerifiedChannel  int
	LowRisk          int
	MidRisk          int
	LowRiskThreshold float64
	MidRiskThreshold float64
	PriorExperience  int
	OperationalAsset int
	WaitingPerDay    int
	WaitingCap       int
}

// DefaultPriorityWeights returns the stock weight set.
func DefaultPriorityWeights() PriorityWeights {
	return PriorityWeights{
		VerifiedChannel:  25,
		LowRisk:          30,
		MidRisk:          15,
		LowRiskThreshold: 0.30,
		MidRiskThreshold: 0.60,
		PriorExperience:  10,
		OperationalAsset: 10,
		WaitingPerDay:    1,
		WaitingCap:       30,
	}
}

// PriorityWeightsFromConfig merges configured values over the defaults.
func PriorityWeightsFromConfig(c config.PriorityWeightsConfig) PriorityWeights {
	w := DefaultPriorityWeights()
	if c.VerifiedChannel != 0 {
		w.VerifiedChannel = c.VerifiedChannel
	}
	if c.LowRisk != 0 {
		w.LowRisk = c.LowRisk
	}
	if c.MidRisk != 0 {
		w.MidRisk = c.MidRisk
	}
	if c.LowRiskThreshold != 0 {
		w.LowRiskThreshold = c.LowRiskThreshold
	}
	if c.MidRiskThreshold != 0 {
		w.MidRiskThreshold = c.MidRiskThreshold
	}
	if c.PriorExperience != 0 {
		w.PriorExperience = c.PriorExperience
	}
	if c.OperationalAsset != 0 {
		w.OperationalAsset = c.OperationalAsset
	}
	if c.WaitingPerDay != 0 {
		w.WaitingPerDay = c.WaitingPerDay
	}
	if c.WaitingCap != 0 {
		w.WaitingCap = c.WaitingCap
	}
	return w
}

// EligibilityConfig carries the ceiling, per-criterion penalties and the pass
// threshold for the enrollment pre-check.
type EligibilityConfig struct {
	Ceiling         int
	PassThreshold   int
	AgePenalty      int
	DurationPenalty int
	CapacityPenalty int
	LocationPenalty int
	DeadlinePenalty int
	SlotsPenalty    int
}

// DefaultEligibilityConfig returns the stock penalty set.
func DefaultEligibilityConfig() EligibilityConfig {
	return EligibilityConfig{
		Ceiling:         100,
		PassThreshold:   60,
		AgePenalty:      20,
		DurationPenalty: 15,
		CapacityPenalty: 15,
		LocationPenalty: 25,
		DeadlinePenalty: 40,
		SlotsPenalty:    50,
	}
}

// EligibilityFromConfig merges configured values over the defaults.
func EligibilityFromConfig(c config.EligibilityScoringConfig) EligibilityConfig {
	e := DefaultEligibilityConfig()
	if c.Ceiling != 0 {
		e.Ceiling = c.Ceiling
	}
	if c.PassThreshold != 0 {
		e.PassThreshold = c.PassThreshold
	}
	if c.AgePenalty != 0 {
		e.AgePenalty = c.AgePenalty
	}
	if c.DurationPenalty != 0 {
		e.DurationPenalty = c.DurationPenalty
	}
	if c.CapacityPenalty != 0 {
		e.CapacityPenalty = c.CapacityPenalty
	}
	if c.LocationPenalty != 0 {
		e.LocationPenalty = c.LocationPenalty
	}
	if c.DeadlinePenalty != 0 {
		e.DeadlinePenalty = c.DeadlinePenalty
	}
	if c.SlotsPenalty != 0 {
		e.SlotsPenalty = c.SlotsPenalty
	}
	return e
}
