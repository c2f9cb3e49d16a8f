// internal/queue/balancer_test.go
package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poultry-review-engine/internal/models"
)

// ==========================
// Test Helpers
// ==========================

func createReviewer(id string, active bool) models.Reviewer {
	return models.Reviewer{
		ID:     id,
		Name:   "Reviewer " + id,
		Email:  id + "@agriculture.go.ke",
		Role:   models.RoleConstituencyOfficer,
		Active: active,
	}
}

// ==========================
// Balancer Tests
// ==========================

func TestMinLoadBalancer_PicksLeastLoaded(t *testing.T) {
	balancer := MinLoadBalancer{MaxPerReviewer: 10}
	candidates := []models.Reviewer{
		createReviewer("rev-a", true),
		createReviewer("rev-b", true),
		createReviewer("rev-c", true),
	}
	loads := map[string]int{"rev-a": 5, "rev-b": 2, "rev-c": 7}

	picked, ok := balancer.Pick(candidates, loads)

	require.True(t, ok)
	assert.Equal(t, "rev-b", picked.ID)
}

func TestMinLoadBalancer_SkipsInactiveReviewers(t *testing.T) {
	balancer := MinLoadBalancer{MaxPerReviewer: 10}
	candidates := []models.Reviewer{
		createReviewer("rev-a", false),
		createReviewer("rev-b", true),
	}
	loads := map[string]int{"rev-a": 0, "rev-b": 9}

	picked, ok := balancer.Pick(candidates, loads)

	require.True(t, ok)
	assert.Equal(t, "rev-b", picked.ID)
}

func TestMinLoadBalancer_SkipsReviewersAtCap(t *testing.T) {
	balancer := MinLoadBalancer{MaxPerReviewer: 5}
	candidates := []models.Reviewer{
		createReviewer("rev-a", true),
		createReviewer("rev-b", true),
	}
	loads := map[string]int{"rev-a": 5, "rev-b": 4}

	picked, ok := balancer.Pick(candidates, loads)

	require.True(t, ok)
	assert.Equal(t, "rev-b", picked.ID)
}

func TestMinLoadBalancer_AllSaturatedLeavesItemUnassigned(t *testing.T) {
	balancer := MinLoadBalancer{MaxPerReviewer: 3}
	candidates := []models.Reviewer{
		createReviewer("rev-a", true),
		createReviewer("rev-b", true),
	}
	loads := map[string]int{"rev-a": 3, "rev-b": 4}

	_, ok := balancer.Pick(candidates, loads)

	assert.False(t, ok)
}

func TestMinLoadBalancer_TieBreaksOnReviewerID(t *testing.T) {
	balancer := MinLoadBalancer{MaxPerReviewer: 10}
	candidates := []models.Reviewer{
		createReviewer("rev-c", true),
		createReviewer("rev-a", true),
		createReviewer("rev-b", true),
	}
	loads := map[string]int{"rev-a": 2, "rev-b": 2, "rev-c": 2}

	for i := 0; i < 5; i++ {
		picked, ok := balancer.Pick(candidates, loads)
		require.True(t, ok)
		assert.Equal(t, "rev-a", picked.ID)
	}
}

func TestMinLoadBalancer_ZeroCapMeansUncapped(t *testing.T) {
	balancer := MinLoadBalancer{}
	candidates := []models.Reviewer{createReviewer("rev-a", true)}
	loads := map[string]int{"rev-a": 500}

	picked, ok := balancer.Pick(candidates, loads)

	require.True(t, ok)
	assert.Equal(t, "rev-a", picked.ID)
}

func TestMinLoadBalancer_NoCandidates(t *testing.T) {
	balancer := MinLoadBalancer{MaxPerReviewer: 10}

	_, ok := balancer.Pick(nil, nil)

	assert.False(t, ok)
}
