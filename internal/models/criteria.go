// internal/models/criteria.go
package models

import "time"

// ProgramCriteria are the admission rules an enrollment application is checked
// against before human review. Supplied read-only by the criteria provider;
// zero-valued bounds are not enforced.
type ProgramCriteria struct {
	ProgramID        string     `json:"programId"`
	MinAge           int        `json:"minAge,omitempty"`
	MaxAge           int        `json:"maxAge,omitempty"`
	MinMonthsFarming int        `json:"minMonthsFarming,omitempty"`
	MaxMonthsFarming int        `json:"maxMonthsFarming,omitempty"`
	MinCapacity      int        `json:"minCapacity,omitempty"`
	MaxCapacity      int        `json:"maxCapacity,omitempty"`
	EligibleCounties []string   `json:"eligibleCounties,omitempty"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	RemainingSlots   *int       `json:"remainingSlots,omitempty"`
}

// CountyEligible reports whether county is admitted. An empty list admits all
// counties.
func (c *ProgramCriteria) CountyEligible(county string) bool {
	if len(c.EligibleCounties) == 0 {
		return true
	}
	for _, e := range c.EligibleCounties {
		if e == county {
			return true
		}
	}
	return false
}
