// internal/queue/balancer.go
package queue

import (
	"sort"

	"poultry-review-engine/internal/models"
)

// Balancer picks which reviewer a fresh work item should land on. The bool is
// false when no candidate can take more work.
type Balancer interface {
	Pick(candidates []models.Reviewer, loads map[string]int) (models.Reviewer, bool)
}

// MinLoadBalancer assigns to the least-loaded active reviewer. Candidates at
// or over MaxPerReviewer are filtered out first; ties break on reviewer ID so
// repeated picks over the same pool are deterministic.
type MinLoadBalancer struct {
	// MaxPerReviewer caps open items per reviewer. Zero disables the cap.
	MaxPerReviewer int
}

func (b MinLoadBalancer) Pick(candidates []models.Reviewer, loads map[string]int) (models.Reviewer, bool) {
	var eligible []models.Reviewer
	for _, reviewer := range candidates {
		if !reviewer.Active {
			continue
		}
		if b.MaxPerReviewer > 0 && loads[reviewer.ID] >= b.MaxPerReviewer {
			continue
		}
		eligible = append(eligible, reviewer)
	}
	if len(eligible) == 0 {
		return models.Reviewer{}, false
	}

	sort.Slice(eligible, func(i, j int) bool {
		loadI, loadJ := loads[eligible[i].ID], loads[eligible[j].ID]
		if loadI != loadJ {
			return loadI < loadJ
		}
		return eligible[i].ID < eligible[j].ID
	})
	return eligible[0], true
}
