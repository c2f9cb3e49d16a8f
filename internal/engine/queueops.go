package engine

import (
	"context"
	"fmt"
	"time"

	"poultry-review-engine/internal/common/errors"
	"poultry-review-engine/internal/common/metrics"
	"poultry-review-engine/internal/models"
	"poultry-review-engine/internal/notify"
	"poultry-review-engine/internal/store"
)

// ==========================
// Work item operations
// ==========================

// Claim takes a pending work item for a reviewer. When two reviewers race
// for the same item, the version check lets exactly one win; the loser gets
// a conflict and should refresh the queue.
func (e *Engine) Claim(ctx context.Context, itemID, reviewerID string) (item *models.WorkItem, err error) {
	ctx, span := e.obs.StartSpan(ctx, "engine.claim")
	defer span.End()
	started := time.Now()
	defer func() { e.observe(ctx, "claim", started, err) }()

	item, err = e.store.GetWorkItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if _, err = e.authorize(ctx, reviewerID, item.Stage); err != nil {
		return nil, err
	}
	now := e.clock().UTC()
	if err = e.queue.Claim(item, reviewerID, now); err != nil {
		return nil, err
	}

	result := &store.TransitionResult{UpdateItem: item}
	result.Actions = append(result.Actions,
		e.newAction(item.ApplicationID, &item.Stage, reviewerID, models.ActionClaimed, "", now))
	if err = e.store.ApplyTransition(ctx, result); err != nil {
		return nil, err
	}
	e.publish(result.Actions)
	e.logger.Info("work item claimed", map[string]interface{}{
		"workItemId": item.ID,
		"stage":      string(item.Stage),
		"reviewerId": reviewerID,
	})
	return item, nil
}

// StartReview marks a claimed item as actively under review by its assignee.
func (e *Engine) StartReview(ctx context.Context, itemID, reviewerID string) (item *models.WorkItem, err error) {
	ctx, span := e.obs.StartSpan(ctx, "engine.start_review")
	defer span.End()
	started := time.Now()
	defer func() { e.observe(ctx, "start_review", started, err) }()

	item, err = e.store.GetWorkItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if _, err = e.authorize(ctx, reviewerID, item.Stage); err != nil {
		return nil, err
	}
	if err = e.queue.StartReview(item, reviewerID); err != nil {
		return nil, err
	}

	now := e.clock().UTC()
	result := &store.TransitionResult{UpdateItem: item}
	result.Actions = append(result.Actions,
		e.newAction(item.ApplicationID, &item.Stage, reviewerID, models.ActionReviewStarted, "", now))
	if err = e.store.ApplyTransition(ctx, result); err != nil {
		return nil, err
	}
	e.publish(result.Actions)
	return item, nil
}

// Release puts a held item back on the queue with its priority and entry
// time intact. Program admins may release items held by other reviewers.
func (e *Engine) Release(ctx context.Context, itemID, reviewerID string) (item *models.WorkItem, err error) {
	ctx, span := e.obs.StartSpan(ctx, "engine.release")
	defer span.End()
	started := time.Now()
	defer func() { e.observe(ctx, "release", started, err) }()

	item, err = e.store.GetWorkItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	reviewer, err := e.directory.Get(ctx, reviewerID)
	if err != nil {
		return nil, err
	}
	force := reviewer.Role == models.RoleProgramAdmin
	previousAssignee := item.AssignedTo
	if err = e.queue.Release(item, reviewerID, force); err != nil {
		return nil, err
	}

	now := e.clock().UTC()
	notes := ""
	if force && previousAssignee != reviewerID {
		notes = fmt.Sprintf("released from %s by administrator", previousAssignee)
	}
	result := &store.TransitionResult{UpdateItem: item}
	result.Actions = append(result.Actions,
		e.newAction(item.ApplicationID, &item.Stage, reviewerID, models.ActionReleased, notes, now))
	if err = e.store.ApplyTransition(ctx, result); err != nil {
		return nil, err
	}
	e.publish(result.Actions)
	e.logger.Info("work item released", map[string]interface{}{
		"workItemId": item.ID,
		"stage":      string(item.Stage),
		"reviewerId": reviewerID,
	})
	return item, nil
}

// GetQueue lists a stage's work items in queue order: priority descending,
// then entry time, then ID.
func (e *Engine) GetQueue(ctx context.Context, stage models.Stage, filter store.QueueFilter) ([]models.WorkItem, error) {
	if !models.ValidStage(stage) {
		return nil, errors.NewValidationError("unknown review stage", string(stage))
	}
	return e.queue.List(ctx, stage, filter)
}

// ==========================
// SLA sweep
// ==========================

// SweepOverdue flags open work items past their review deadline. A nil stage
// sweeps every stage. Flagging is idempotent: items already flagged, or
// completed since the candidate read, are skipped. The sweep writes no audit
// actions; the overdue flag is operational state, not a review decision.
func (e *Engine) SweepOverdue(ctx context.Context, stage *models.Stage) ([]models.WorkItem, error) {
	ctx, span := e.obs.StartSpan(ctx, "engine.sweep_overdue")
	defer span.End()

	if stage != nil && !models.ValidStage(*stage) {
		return nil, errors.NewValidationError("unknown review stage", string(*stage))
	}
	now := e.clock().UTC()
	candidates, err := e.store.ListOverdueCandidates(ctx, stage, now)
	if err != nil {
		return nil, err
	}

	flagged := make([]models.WorkItem, 0, len(candidates))
	for _, candidate := range candidates {
		ok, markErr := e.store.MarkOverdue(ctx, candidate.ID, candidate.Version)
		if markErr != nil {
			if errors.IsNotFound(markErr) {
				continue
			}
			return nil, markErr
		}
		if !ok {
			continue
		}
		candidate.IsOverdue = true
		candidate.Version++
		flagged = append(flagged, candidate)
	}

	for i := range flagged {
		e.notifyOverdue(ctx, &flagged[i])
	}
	e.updateQueueGauges(ctx, stage)

	if len(flagged) > 0 {
		e.logger.Info("overdue sweep flagged work items", map[string]interface{}{
			"flagged": len(flagged),
		})
	}
	return flagged, nil
}

func (e *Engine) notifyOverdue(ctx context.Context, item *models.WorkItem) {
	if item.AssignedTo == "" {
		return
	}
	reviewer, err := e.directory.Get(ctx, item.AssignedTo)
	if err != nil {
		e.logger.Warn("cannot resolve assignee for overdue notice", map[string]interface{}{
			"workItemId": item.ID,
			"reviewerId": item.AssignedTo,
			"error":      err.Error(),
		})
		return
	}
	stage := item.Stage
	e.dispatch(ctx, notify.Event{
		Kind:              notify.EventWorkItemOverdue,
		ApplicationID:     item.ApplicationID,
		ApplicationNumber: item.ApplicationNumber,
		Stage:             &stage,
		Priority:          notify.PriorityHigh,
		Recipients:        []notify.Recipient{notify.ReviewerRecipient(*reviewer)},
		Metadata: map[string]interface{}{
			"deadline": item.SLADueAt.Format("2006-01-02"),
		},
		OccurredAt: e.clock().UTC(),
	})
}

// updateQueueGauges refreshes the depth and overdue gauges after a sweep.
// Gauge staleness is tolerable, so read failures only warn.
func (e *Engine) updateQueueGauges(ctx context.Context, swept *models.Stage) {
	depths, err := e.store.CountOpenByStage(ctx)
	if err != nil {
		e.logger.Warn("queue depth refresh failed", map[string]interface{}{"error": err.Error()})
	} else {
		for _, st := range models.ReviewStages {
			metrics.QueueDepth.WithLabelValues(string(st)).Set(float64(depths[st]))
		}
	}

	stages := models.ReviewStages
	if swept != nil {
		stages = []models.Stage{*swept}
	}
	for _, st := range stages {
		items, listErr := e.store.ListWorkItems(ctx, st, store.QueueFilter{})
		if listErr != nil {
			e.logger.Warn("overdue gauge refresh failed", map[string]interface{}{
				"stage": string(st),
				"error": listErr.Error(),
			})
			continue
		}
		overdue := 0
		for i := range items {
			if items[i].IsOverdue {
				overdue++
			}
		}
		metrics.OverdueWorkItems.WithLabelValues(string(st)).Set(float64(overdue))
	}
}
