// internal/sla/policy.go
package sla

import (
	"time"

	"poultry-review-engine/internal/common/config"
	"poultry-review-engine/internal/models"
)

// Deadlines when nothing else is configured. Constituency gets the longest
// window because those officers carry the bulk of the volume.
var fallbackDays = map[models.Stage]int{
	models.StageEligibility:  1,
	models.StageConstituency: 7,
	models.StageRegional:     5,
	models.StageNational:     3,
}

// Policy resolves how many days a stage may hold a work item. Resolution
// order: track override, configured default, built-in fallback.
type Policy struct {
	defaults map[models.Stage]int
}

func NewPolicy(cfg config.WorkflowConfig) *Policy {
	defaults := make(map[models.Stage]int, len(cfg.StageSLADays))
	for name, days := range cfg.StageSLADays {
		if days > 0 {
			defaults[models.Stage(name)] = days
		}
	}
	return &Policy{defaults: defaults}
}

// Days returns the SLA window for the stage on the given track.
func (p *Policy) Days(track *models.TrackDefinition, stage models.Stage) int {
	if track != nil {
		if days, ok := track.StageSLADays[stage]; ok && days > 0 {
			return days
		}
	}
	if days, ok := p.defaults[stage]; ok {
		return days
	}
	return fallbackDays[stage]
}

// DueAt computes the deadline for an item entering the stage at from.
func (p *Policy) DueAt(track *models.TrackDefinition, stage models.Stage, from time.Time) time.Time {
	return from.Add(time.Duration(p.Days(track, stage)) * 24 * time.Hour)
}
