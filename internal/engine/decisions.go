package engine

import (
	"context"
	"fmt"
	"time"

	"poultry-review-engine/internal/common/errors"
	"poultry-review-engine/internal/models"
	"poultry-review-engine/internal/notify"
	"poultry-review-engine/internal/store"
)

// stageTransition is the loaded context every stage decision starts from: the
// application under review, its open work item, the resolved track, and the
// authorized actor.
type stageTransition struct {
	app      *models.Application
	item     *models.WorkItem
	track    *models.TrackDefinition
	reviewer *models.Reviewer
	stage    models.Stage
}

// loadStageTransition reads and guards the state a decision acts on. The
// application must sit in review at stage, the actor must hold a role for
// that stage, and the open work item must exist. Decisions do not require the
// actor to be the assignee; any stage officer may decide.
func (e *Engine) loadStageTransition(ctx context.Context, applicationID string, stage models.Stage, actorID string) (*stageTransition, error) {
	app, err := e.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status.IsTerminal() {
		return nil, errors.NewInvalidStateError("application already reached a final decision",
			fmt.Sprintf("status: %s", app.Status))
	}
	if !app.AtStage(stage) {
		return nil, errors.NewInvalidStateError("application is not under review at this stage",
			fmt.Sprintf("status: %s, stage: %s", app.Status, stage))
	}
	reviewer, err := e.authorize(ctx, actorID, stage)
	if err != nil {
		return nil, err
	}
	track, ok := e.tracks.Track(app.TrackID)
	if !ok {
		return nil, errors.NewNotFoundError("track", app.TrackID)
	}
	item, err := e.store.OpenWorkItem(ctx, app.ID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewInternalError("application under review has no open work item",
				fmt.Errorf("application: %s", app.ID))
		}
		return nil, err
	}
	return &stageTransition{app: app, item: item, track: track, reviewer: reviewer, stage: stage}, nil
}

// Approve records a stage approval. Intermediate stages advance the
// application and enqueue the next stage's work item; the final stage decides
// the application, enrolled for enrollment tracks and approved otherwise.
func (e *Engine) Approve(ctx context.Context, applicationID string, stage models.Stage, actorID, notes string) (app *models.Application, err error) {
	ctx, span := e.obs.StartSpan(ctx, "engine.approve")
	defer span.End()
	started := time.Now()
	defer func() { e.observe(ctx, "approve", started, err) }()

	tr, err := e.loadStageTransition(ctx, applicationID, stage, actorID)
	if err != nil {
		return nil, err
	}
	app = tr.app
	now := e.clock().UTC()

	e.queue.Complete(tr.item, models.OutcomeApproved, now)
	if app.StageApprovals == nil {
		app.StageApprovals = make(map[models.Stage]models.StageApproval)
	}
	app.StageApprovals[stage] = models.StageApproval{ApproverID: actorID, ApprovedAt: now, Notes: notes}

	result := &store.TransitionResult{App: app, CloseItem: tr.item}
	result.Actions = append(result.Actions, e.newAction(app.ID, &stage, actorID, models.ActionApproved, notes, now))

	next, hasNext := tr.track.NextStage(stage)
	var assignee *models.Reviewer
	if hasNext {
		assignee = e.enterStage(ctx, app, tr.track, next, result, now)
	} else {
		app.CurrentStage = nil
		app.DecidedAt = &now
		if tr.track.Kind == models.TrackProgramEnrollment {
			app.Status = models.StatusEnrolled
		} else {
			app.Status = models.StatusApproved
		}
	}

	if err = e.store.ApplyTransition(ctx, result); err != nil {
		return nil, err
	}
	e.publish(result.Actions)
	e.logger.Info("stage approved", map[string]interface{}{
		"applicationId": app.ID,
		"number":        app.Number,
		"stage":         string(stage),
		"reviewerId":    actorID,
		"status":        string(app.Status),
	})

	if hasNext {
		e.notifyAssignment(ctx, app, result.NewItem, assignee)
		return app, nil
	}
	if app.Status == models.StatusEnrolled {
		if e.criteria != nil && app.ProgramID != "" {
			if slotErr := e.criteria.ConsumeSlot(ctx, app.ProgramID); slotErr != nil {
				e.logger.Warn("failed to consume program slot", map[string]interface{}{
					"programId":     app.ProgramID,
					"applicationId": app.ID,
					"error":         slotErr.Error(),
				})
			}
		}
		e.dispatch(ctx, e.applicantEvent(notify.EventApplicationEnrolled, app, nil))
	} else {
		e.dispatch(ctx, e.applicantEvent(notify.EventApplicationApproved, app, nil))
	}
	return app, nil
}

// Reject ends the review with a rejection. The reason is mandatory and is
// preserved on the application as well as in the audit trail.
func (e *Engine) Reject(ctx context.Context, applicationID string, stage models.Stage, actorID, reason, notes string) (app *models.Application, err error) {
	ctx, span := e.obs.StartSpan(ctx, "engine.reject")
	defer span.End()
	started := time.Now()
	defer func() { e.observe(ctx, "reject", started, err) }()

	if reason == "" {
		return nil, errors.NewValidationError("rejection reason is required", "field: reason")
	}
	tr, err := e.loadStageTransition(ctx, applicationID, stage, actorID)
	if err != nil {
		return nil, err
	}
	app = tr.app
	now := e.clock().UTC()

	e.queue.Complete(tr.item, models.OutcomeRejected, now)
	app.Status = models.StatusRejected
	app.CurrentStage = nil
	app.RejectionReason = reason
	app.RejectionNotes = notes
	app.DecidedAt = &now

	actionNotes := reason
	if notes != "" {
		actionNotes = reason + "; " + notes
	}
	result := &store.TransitionResult{App: app, CloseItem: tr.item}
	result.Actions = append(result.Actions, e.newAction(app.ID, &stage, actorID, models.ActionRejected, actionNotes, now))

	if err = e.store.ApplyTransition(ctx, result); err != nil {
		return nil, err
	}
	e.publish(result.Actions)
	e.logger.Info("application rejected", map[string]interface{}{
		"applicationId": app.ID,
		"number":        app.Number,
		"stage":         string(stage),
		"reviewerId":    actorID,
		"reason":        reason,
	})
	e.dispatch(ctx, e.applicantEvent(notify.EventApplicationRejected, app, map[string]interface{}{
		"reason": reason,
	}))
	return app, nil
}

// RequestChanges pauses the review and sends the application back to the
// applicant with a resubmission deadline. The stage that asked is recoverable
// from the audit trail, so CurrentStage clears until resubmission.
func (e *Engine) RequestChanges(ctx context.Context, applicationID string, stage models.Stage, actorID, text string, deadlineDays int) (app *models.Application, err error) {
	ctx, span := e.obs.StartSpan(ctx, "engine.request_changes")
	defer span.End()
	started := time.Now()
	defer func() { e.observe(ctx, "request_changes", started, err) }()

	if text == "" {
		return nil, errors.NewValidationError("change request text is required", "field: text")
	}
	tr, err := e.loadStageTransition(ctx, applicationID, stage, actorID)
	if err != nil {
		return nil, err
	}
	app = tr.app
	now := e.clock().UTC()

	days := deadlineDays
	if days <= 0 {
		days = tr.track.ChangesDeadlineDays
	}
	if days <= 0 {
		days = e.changesDays
	}
	deadline := now.AddDate(0, 0, days)

	e.queue.Complete(tr.item, models.OutcomeChangesRequested, now)
	app.Status = models.StatusChangesRequested
	app.CurrentStage = nil
	app.ChangesRequested = text
	app.ChangesDeadline = &deadline

	result := &store.TransitionResult{App: app, CloseItem: tr.item}
	result.Actions = append(result.Actions, e.newAction(app.ID, &stage, actorID, models.ActionChangesRequested, text, now))

	if err = e.store.ApplyTransition(ctx, result); err != nil {
		return nil, err
	}
	e.publish(result.Actions)
	e.logger.Info("changes requested", map[string]interface{}{
		"applicationId": app.ID,
		"number":        app.Number,
		"stage":         string(stage),
		"reviewerId":    actorID,
		"deadline":      deadline.Format("2006-01-02"),
	})
	event := e.applicantEvent(notify.EventChangesRequested, app, map[string]interface{}{
		"reason":   text,
		"deadline": deadline.Format("2006-01-02"),
	})
	event.Priority = notify.PriorityHigh
	e.dispatch(ctx, event)
	return app, nil
}
