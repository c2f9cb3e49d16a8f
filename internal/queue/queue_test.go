// internal/queue/queue_test.go
package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poultry-review-engine/internal/common/errors"
	"poultry-review-engine/internal/common/logger"
	"poultry-review-engine/internal/models"
	"poultry-review-engine/internal/store"
)

// ==========================
// Test Helpers
// ==========================

var queueNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func createQueueManager(t *testing.T, loads map[string]int) *Manager {
	t.Helper()
	source := LoadFunc(func(_ context.Context, reviewerID string) (int, error) {
		return loads[reviewerID], nil
	})
	return NewManager(store.NewInMemoryStore(), MinLoadBalancer{MaxPerReviewer: 10}, source, logger.NewTestLogger(t))
}

func createQueueApplication() *models.Application {
	return &models.Application{
		ID:            "app-1",
		Number:        "NFR-2025-000001",
		TrackID:       "new-farmer-registration",
		ApplicantID:   "applicant-7",
		Status:        models.StatusConstituencyReview,
		PriorityScore: 65,
	}
}

// ==========================
// Item Construction Tests
// ==========================

func TestBuild_CopiesPriorityAndStartsPending(t *testing.T) {
	manager := createQueueManager(t, nil)
	app := createQueueApplication()
	dueAt := queueNow.Add(7 * 24 * time.Hour)

	item := manager.Build(app, models.StageConstituency, dueAt, queueNow)

	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "app-1", item.ApplicationID)
	assert.Equal(t, "NFR-2025-000001", item.ApplicationNumber)
	assert.Equal(t, models.StageConstituency, item.Stage)
	assert.Equal(t, models.WorkItemPending, item.Status)
	assert.Equal(t, 65, item.Priority)
	assert.Equal(t, queueNow, item.EnqueuedAt)
	assert.Equal(t, dueAt, item.SLADueAt)
	assert.Empty(t, item.AssignedTo)
	assert.False(t, item.IsOverdue)
}

// ==========================
// Auto-Assignment Tests
// ==========================

func TestAutoAssign_HandsItemToLeastLoadedReviewer(t *testing.T) {
	manager := createQueueManager(t, map[string]int{"rev-a": 4, "rev-b": 1})
	item := manager.Build(createQueueApplication(), models.StageConstituency, queueNow.Add(7*24*time.Hour), queueNow)
	candidates := []models.Reviewer{
		createReviewer("rev-a", true),
		createReviewer("rev-b", true),
	}

	assigned := manager.AutoAssign(context.Background(), item, candidates, queueNow)

	require.NotNil(t, assigned)
	assert.Equal(t, "rev-b", assigned.ID)
	assert.Equal(t, models.WorkItemClaimed, item.Status)
	assert.Equal(t, "rev-b", item.AssignedTo)
	assert.True(t, item.AutoAssigned)
	require.NotNil(t, item.AssignedAt)
	assert.Equal(t, queueNow, *item.AssignedAt)
}

func TestAutoAssign_NoCandidatesLeavesItemPending(t *testing.T) {
	manager := createQueueManager(t, nil)
	item := manager.Build(createQueueApplication(), models.StageConstituency, queueNow.Add(7*24*time.Hour), queueNow)

	assigned := manager.AutoAssign(context.Background(), item, nil, queueNow)

	assert.Nil(t, assigned)
	assert.Equal(t, models.WorkItemPending, item.Status)
	assert.Empty(t, item.AssignedTo)
	assert.False(t, item.AutoAssigned)
}

func TestAutoAssign_LoadLookupFailureDoesNotBlockAssignment(t *testing.T) {
	source := LoadFunc(func(_ context.Context, reviewerID string) (int, error) {
		return 0, fmt.Errorf("redis unavailable")
	})
	manager := NewManager(store.NewInMemoryStore(), MinLoadBalancer{MaxPerReviewer: 10}, source, logger.NewTestLogger(t))
	item := manager.Build(createQueueApplication(), models.StageConstituency, queueNow.Add(7*24*time.Hour), queueNow)

	assigned := manager.AutoAssign(context.Background(), item, []models.Reviewer{createReviewer("rev-a", true)}, queueNow)

	require.NotNil(t, assigned)
	assert.Equal(t, "rev-a", assigned.ID)
	assert.Equal(t, models.WorkItemClaimed, item.Status)
}

// ==========================
// Claim / Start / Release Tests
// ==========================

func TestClaim_OnlyFromPending(t *testing.T) {
	manager := createQueueManager(t, nil)
	item := manager.Build(createQueueApplication(), models.StageConstituency, queueNow.Add(7*24*time.Hour), queueNow)

	err := manager.Claim(item, "rev-a", queueNow)
	require.NoError(t, err)
	assert.Equal(t, models.WorkItemClaimed, item.Status)
	assert.Equal(t, "rev-a", item.AssignedTo)
	assert.False(t, item.AutoAssigned)

	err = manager.Claim(item, "rev-b", queueNow)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidState(err))
	assert.Equal(t, "rev-a", item.AssignedTo)
}

func TestStartReview_OnlyAssigneeFromClaimed(t *testing.T) {
	manager := createQueueManager(t, nil)
	item := manager.Build(createQueueApplication(), models.StageConstituency, queueNow.Add(7*24*time.Hour), queueNow)
	require.NoError(t, manager.Claim(item, "rev-a", queueNow))

	err := manager.StartReview(item, "rev-b")
	require.Error(t, err)
	assert.True(t, errors.IsAuthorization(err))

	err = manager.StartReview(item, "rev-a")
	require.NoError(t, err)
	assert.Equal(t, models.WorkItemInReview, item.Status)

	err = manager.StartReview(item, "rev-a")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidState(err))
}

func TestRelease_PreservesPriorityAndQueuePosition(t *testing.T) {
	manager := createQueueManager(t, nil)
	item := manager.Build(createQueueApplication(), models.StageConstituency, queueNow.Add(7*24*time.Hour), queueNow)
	require.NoError(t, manager.Claim(item, "rev-a", queueNow))
	require.NoError(t, manager.StartReview(item, "rev-a"))

	err := manager.Release(item, "rev-a", false)

	require.NoError(t, err)
	assert.Equal(t, models.WorkItemPending, item.Status)
	assert.Empty(t, item.AssignedTo)
	assert.Nil(t, item.AssignedAt)
	assert.False(t, item.AutoAssigned)
	assert.Equal(t, 65, item.Priority)
	assert.Equal(t, queueNow, item.EnqueuedAt)
}

func TestRelease_RequiresAssigneeUnlessForced(t *testing.T) {
	manager := createQueueManager(t, nil)
	item := manager.Build(createQueueApplication(), models.StageConstituency, queueNow.Add(7*24*time.Hour), queueNow)
	require.NoError(t, manager.Claim(item, "rev-a", queueNow))

	err := manager.Release(item, "rev-b", false)
	require.Error(t, err)
	assert.True(t, errors.IsAuthorization(err))

	err = manager.Release(item, "admin-1", true)
	require.NoError(t, err)
	assert.Equal(t, models.WorkItemPending, item.Status)
}

func TestRelease_PendingItemIsInvalid(t *testing.T) {
	manager := createQueueManager(t, nil)
	item := manager.Build(createQueueApplication(), models.StageConstituency, queueNow.Add(7*24*time.Hour), queueNow)

	err := manager.Release(item, "rev-a", false)

	require.Error(t, err)
	assert.True(t, errors.IsInvalidState(err))
}

// ==========================
// Completion Tests
// ==========================

func TestComplete_ClosesItemWithOutcome(t *testing.T) {
	manager := createQueueManager(t, nil)
	item := manager.Build(createQueueApplication(), models.StageConstituency, queueNow.Add(7*24*time.Hour), queueNow)
	require.NoError(t, manager.Claim(item, "rev-a", queueNow))

	manager.Complete(item, models.OutcomeApproved, queueNow.Add(2*time.Hour))

	assert.Equal(t, models.WorkItemCompleted, item.Status)
	assert.Equal(t, models.OutcomeApproved, item.Outcome)
	require.NotNil(t, item.CompletedAt)
	assert.Equal(t, queueNow.Add(2*time.Hour), *item.CompletedAt)
	assert.False(t, item.Open())
}
