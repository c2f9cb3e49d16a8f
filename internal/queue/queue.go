// internal/queue/queue.go
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"poultry-review-engine/internal/common/errors"
	"poultry-review-engine/internal/common/logger"
	"poultry-review-engine/internal/common/metrics"
	"poultry-review-engine/internal/models"
	"poultry-review-engine/internal/store"
)

// LoadSource reports how many open items a reviewer currently holds. The
// directory's cached view implements it in production.
type LoadSource interface {
	LoadOf(ctx context.Context, reviewerID string) (int, error)
}

// LoadFunc adapts a plain function to LoadSource.
type LoadFunc func(ctx context.Context, reviewerID string) (int, error)

func (f LoadFunc) LoadOf(ctx context.Context, reviewerID string) (int, error) {
	return f(ctx, reviewerID)
}

// Manager owns work-item mechanics: building items for a stage, best-effort
// auto-assignment, and the claim/start/release state checks. It mutates item
// structs in place; persisting the result is the caller's job.
type Manager struct {
	store    store.Store
	balancer Balancer
	loads    LoadSource
	logger   logger.Logger
}

func NewManager(st store.Store, balancer Balancer, loads LoadSource, log logger.Logger) *Manager {
	return &Manager{
		store:    st,
		balancer: balancer,
		loads:    loads,
		logger:   log.WithFields(map[string]interface{}{"component": "queue"}),
	}
}

// Build creates the work item for an application entering a review stage.
// Priority is copied from the application now and stays fixed for the item's
// lifetime.
func (m *Manager) Build(app *models.Application, stage models.Stage, dueAt, now time.Time) *models.WorkItem {
	return &models.WorkItem{
		ID:                uuid.New().String(),
		ApplicationID:     app.ID,
		ApplicationNumber: app.Number,
		TrackID:           app.TrackID,
		Stage:             stage,
		Status:            models.WorkItemPending,
		Priority:          app.PriorityScore,
		EnqueuedAt:        now,
		SLADueAt:          dueAt,
	}
}

// AutoAssign hands the item to the least-loaded eligible reviewer and returns
// who got it, or nil when nobody can take more work. Assignment is best
// effort: a failed load lookup downgrades that reviewer's load to zero rather
// than blocking the transition.
func (m *Manager) AutoAssign(ctx context.Context, item *models.WorkItem, candidates []models.Reviewer, now time.Time) *models.Reviewer {
	loads := make(map[string]int, len(candidates))
	for _, reviewer := range candidates {
		load, err := m.loads.LoadOf(ctx, reviewer.ID)
		if err != nil {
			m.logger.Warn("failed to fetch reviewer load, assuming zero", map[string]interface{}{
				"reviewerId": reviewer.ID,
				"error":      err.Error(),
			})
			load = 0
		}
		loads[reviewer.ID] = load
	}

	reviewer, ok := m.balancer.Pick(candidates, loads)
	if !ok {
		metrics.AutoAssignments.WithLabelValues(string(item.Stage), "unassigned").Inc()
		m.logger.Info("no reviewer available, work item stays pending", map[string]interface{}{
			"workItemId": item.ID,
			"stage":      string(item.Stage),
			"candidates": len(candidates),
		})
		return nil
	}

	item.Status = models.WorkItemClaimed
	item.AssignedTo = reviewer.ID
	item.AssignedAt = &now
	item.AutoAssigned = true
	metrics.AutoAssignments.WithLabelValues(string(item.Stage), "assigned").Inc()
	m.logger.Info("work item auto-assigned", map[string]interface{}{
		"workItemId": item.ID,
		"stage":      string(item.Stage),
		"reviewerId": reviewer.ID,
		"load":       loads[reviewer.ID],
	})
	return &reviewer
}

// Claim takes a pending item for a reviewer. Anything already claimed, in
// review or completed refuses the claim.
func (m *Manager) Claim(item *models.WorkItem, reviewerID string, now time.Time) error {
	if item.Status != models.WorkItemPending {
		return errors.NewInvalidStateError(
			"work item is not pending",
			fmt.Sprintf("work item: %s, status: %s", item.ID, item.Status))
	}
	item.Status = models.WorkItemClaimed
	item.AssignedTo = reviewerID
	item.AssignedAt = &now
	item.AutoAssigned = false
	return nil
}

// StartReview moves a claimed item to in_review. Only the assignee can start.
func (m *Manager) StartReview(item *models.WorkItem, reviewerID string) error {
	if item.Status != models.WorkItemClaimed {
		return errors.NewInvalidStateError(
			"work item is not claimed",
			fmt.Sprintf("work item: %s, status: %s", item.ID, item.Status))
	}
	if item.AssignedTo != reviewerID {
		return errors.NewAuthorizationError(
			"only the assigned reviewer can start the review",
			fmt.Sprintf("work item: %s, assigned to: %s", item.ID, item.AssignedTo))
	}
	item.Status = models.WorkItemInReview
	return nil
}

// Release puts a claimed or in-review item back on the queue. Priority and
// entry time are untouched, so the application keeps its place. Force lets an
// administrator release someone else's item.
func (m *Manager) Release(item *models.WorkItem, reviewerID string, force bool) error {
	if item.Status != models.WorkItemClaimed && item.Status != models.WorkItemInReview {
		return errors.NewInvalidStateError(
			"work item is not held by a reviewer",
			fmt.Sprintf("work item: %s, status: %s", item.ID, item.Status))
	}
	if !force && item.AssignedTo != reviewerID {
		return errors.NewAuthorizationError(
			"only the assigned reviewer can release the work item",
			fmt.Sprintf("work item: %s, assigned to: %s", item.ID, item.AssignedTo))
	}
	item.Status = models.WorkItemPending
	item.AssignedTo = ""
	item.AssignedAt = nil
	item.AutoAssigned = false
	return nil
}

// Complete closes the item with an outcome. The caller persists it together
// with the application transition that caused it.
func (m *Manager) Complete(item *models.WorkItem, outcome models.WorkItemOutcome, now time.Time) {
	item.Status = models.WorkItemCompleted
	item.Outcome = outcome
	item.CompletedAt = &now
}

// List returns the stage queue ordered by priority (descending), then entry
// time, then ID.
func (m *Manager) List(ctx context.Context, stage models.Stage, filter store.QueueFilter) ([]models.WorkItem, error) {
	return m.store.ListWorkItems(ctx, stage, filter)
}
