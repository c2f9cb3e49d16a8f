// Package engine implements the review workflow state machine. Every
// operation computes one TransitionResult from state it has read, hands it to
// the store as a single version-checked write, and only after that write
// commits does it publish audit records and dispatch notifications. Losing a
// concurrent race therefore costs nothing but a conflict error; no partial
// state ever lands.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"poultry-review-engine/internal/common/config"
	"poultry-review-engine/internal/common/errors"
	"poultry-review-engine/internal/common/logger"
	"poultry-review-engine/internal/common/metrics"
	"poultry-review-engine/internal/common/observability"
	"poultry-review-engine/internal/directory"
	"poultry-review-engine/internal/models"
	"poultry-review-engine/internal/notify"
	"poultry-review-engine/internal/queue"
	"poultry-review-engine/internal/scoring"
	"poultry-review-engine/internal/sla"
	"poultry-review-engine/internal/store"
)

const defaultChangesDeadlineDays = 14

// TrackSource resolves track definitions. The registry package provides the
// production implementation.
type TrackSource interface {
	Track(id string) (*models.TrackDefinition, bool)
}

// CriteriaProvider serves program admission criteria and decrements program
// capacity when an enrollment completes.
type CriteriaProvider interface {
	CriteriaFor(ctx context.Context, programID string) (models.ProgramCriteria, error)
	ConsumeSlot(ctx context.Context, programID string) error
}

// ActionSink receives committed audit records for secondary indexing. The
// store already holds the authoritative copy; sinks are best-effort mirrors.
type ActionSink interface {
	Publish(action models.ReviewAction)
}

type noopSink struct{}

func (noopSink) Publish(models.ReviewAction) {}

// Params collects the engine's collaborators. Store, Queue, SLA, Directory
// and Tracks are required; the rest default to inert implementations.
type Params struct {
	Store    store.Store
	Queue    *queue.Manager
	SLA      *sla.Policy
	Dir      directory.Directory
	Tracks   TrackSource
	Criteria CriteriaProvider

	Notifier notify.Notifier
	Audit    ActionSink

	Weights     scoring.PriorityWeights
	Eligibility scoring.EligibilityConfig
	Workflow    config.WorkflowConfig

	Clock  func() time.Time
	Logger logger.Logger
	Obs    *observability.Observability
}

// Engine drives applications through submission, staged review, and terminal
// decisions.
type Engine struct {
	store       store.Store
	queue       *queue.Manager
	sla         *sla.Policy
	directory   directory.Directory
	tracks      TrackSource
	criteria    CriteriaProvider
	notifier    notify.Notifier
	sink        ActionSink
	weights     scoring.PriorityWeights
	eligibility scoring.EligibilityConfig
	changesDays int
	clock       func() time.Time
	logger      logger.Logger
	obs         *observability.Observability
}

func New(p Params) *Engine {
	if p.Notifier == nil {
		p.Notifier = notify.NoopNotifier{}
	}
	if p.Audit == nil {
		p.Audit = noopSink{}
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	if p.Logger == nil {
		p.Logger = logger.NewNoOpLogger()
	}
	if p.Obs == nil {
		p.Obs = observability.Noop()
	}
	changesDays := p.Workflow.ChangesDeadlineDays
	if changesDays <= 0 {
		changesDays = defaultChangesDeadlineDays
	}
	return &Engine{
		store:       p.Store,
		queue:       p.Queue,
		sla:         p.SLA,
		directory:   p.Dir,
		tracks:      p.Tracks,
		criteria:    p.Criteria,
		notifier:    p.Notifier,
		sink:        p.Audit,
		weights:     p.Weights,
		eligibility: p.Eligibility,
		changesDays: changesDays,
		clock:       p.Clock,
		logger:      p.Logger.WithFields(map[string]interface{}{"component": "engine"}),
		obs:         p.Obs,
	}
}

// ==========================
// Submission
// ==========================

// SubmitRequest carries a new application.
type SubmitRequest struct {
	TrackID     string
	ApplicantID string
	Profile     models.FarmProfile
}

// Submit creates an application on a track, runs the eligibility pre-check
// for tracks that require one, scores priority, and enqueues the application
// at the track's first stage. Eligibility failures reject immediately without
// creating a work item.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (app *models.Application, err error) {
	ctx, span := e.obs.StartSpan(ctx, "engine.submit")
	defer span.End()
	started := time.Now()
	defer func() { e.observe(ctx, "submit", started, err) }()

	if req.TrackID == "" {
		return nil, errors.NewValidationError("track id is required", "field: trackId")
	}
	if req.ApplicantID == "" {
		return nil, errors.NewValidationError("applicant id is required", "field: applicantId")
	}
	track, ok := e.tracks.Track(req.TrackID)
	if !ok {
		return nil, errors.NewNotFoundError("track", req.TrackID)
	}
	firstStage, ok := track.FirstStage()
	if !ok {
		return nil, errors.NewInternalError("track has no stages", fmt.Errorf("track: %s", track.ID))
	}
	if result := validateProfile(req.Profile); !result.Valid {
		return nil, errors.NewValidationError("invalid farm profile",
			strings.Join(result.GetErrorMessages(), "; "))
	}

	now := e.clock().UTC()
	number, err := e.store.NextApplicationNumber(ctx, track.NumberPrefix, now.Year())
	if err != nil {
		return nil, err
	}

	app = &models.Application{
		ID:          uuid.New().String(),
		Number:      number,
		TrackID:     track.ID,
		ProgramID:   track.ProgramID,
		ApplicantID: req.ApplicantID,
		Profile:     req.Profile,
		SubmittedAt: now,
		CreatedAt:   now,
	}

	result := &store.TransitionResult{App: app}
	result.Actions = append(result.Actions, e.newAction(app.ID, nil, req.ApplicantID, models.ActionSubmitted, "", now))

	passed, err := e.runEligibility(ctx, app, track, result, now)
	if err != nil {
		return nil, err
	}
	score, _ := scoring.ScorePriority(scoring.SnapshotOf(app), e.weights, now)
	app.PriorityScore = score

	var assignee *models.Reviewer
	if passed {
		assignee = e.enterStage(ctx, app, track, firstStage, result, now)
	}

	if err = e.store.ApplyTransition(ctx, result); err != nil {
		return nil, err
	}
	e.publish(result.Actions)
	e.logger.Info("application submitted", map[string]interface{}{
		"applicationId": app.ID,
		"number":        app.Number,
		"track":         app.TrackID,
		"status":        string(app.Status),
		"priority":      app.PriorityScore,
	})

	if passed {
		e.dispatch(ctx, e.applicantEvent(notify.EventApplicationSubmitted, app, nil))
		e.notifyAssignment(ctx, app, result.NewItem, assignee)
	} else {
		e.dispatch(ctx, e.applicantEvent(notify.EventApplicationRejected, app, map[string]interface{}{
			"reason": app.RejectionReason,
		}))
	}
	return app, nil
}

// ResubmitRequest carries a corrected application back into review. A nil
// Profile keeps the stored one.
type ResubmitRequest struct {
	Profile *models.FarmProfile
	Notes   string
}

// Resubmit returns an application from changes_requested to the stage that
// asked for changes, with a fresh SLA window and a rescored priority. The
// changes deadline is advisory: resubmission after it is still accepted as
// long as the application has not been swept to rejected.
func (e *Engine) Resubmit(ctx context.Context, applicationID string, req ResubmitRequest) (app *models.Application, err error) {
	ctx, span := e.obs.StartSpan(ctx, "engine.resubmit")
	defer span.End()
	started := time.Now()
	defer func() { e.observe(ctx, "resubmit", started, err) }()

	app, err = e.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.StatusChangesRequested {
		return nil, errors.NewInvalidStateError("application is not awaiting changes",
			fmt.Sprintf("status: %s", app.Status))
	}
	track, ok := e.tracks.Track(app.TrackID)
	if !ok {
		return nil, errors.NewNotFoundError("track", app.TrackID)
	}
	resumeStage, err := e.changeRequestStage(ctx, app.ID)
	if err != nil {
		return nil, err
	}

	now := e.clock().UTC()
	if req.Profile != nil {
		if result := validateProfile(*req.Profile); !result.Valid {
			return nil, errors.NewValidationError("invalid farm profile",
				strings.Join(result.GetErrorMessages(), "; "))
		}
		app.Profile = *req.Profile
	}
	app.ResubmittedAt = &now
	app.ChangesRequested = ""
	app.ChangesDeadline = nil

	notes := "resubmission after requested changes"
	if req.Notes != "" {
		notes += ": " + req.Notes
	}
	result := &store.TransitionResult{App: app}
	result.Actions = append(result.Actions, e.newAction(app.ID, nil, app.ApplicantID, models.ActionSubmitted, notes, now))

	passed, err := e.runEligibility(ctx, app, track, result, now)
	if err != nil {
		return nil, err
	}
	// SubmittedAt is unchanged, so waiting-time points keep accruing across
	// the resubmission and the score cannot drop below the original.
	score, _ := scoring.ScorePriority(scoring.SnapshotOf(app), e.weights, now)
	app.PriorityScore = score

	var assignee *models.Reviewer
	if passed {
		assignee = e.enterStage(ctx, app, track, resumeStage, result, now)
	}

	if err = e.store.ApplyTransition(ctx, result); err != nil {
		return nil, err
	}
	e.publish(result.Actions)
	e.logger.Info("application resubmitted", map[string]interface{}{
		"applicationId": app.ID,
		"number":        app.Number,
		"stage":         string(resumeStage),
		"status":        string(app.Status),
	})

	if passed {
		e.dispatch(ctx, e.applicantEvent(notify.EventApplicationResubmitted, app, nil))
		e.notifyAssignment(ctx, app, result.NewItem, assignee)
	} else {
		e.dispatch(ctx, e.applicantEvent(notify.EventApplicationRejected, app, map[string]interface{}{
			"reason": app.RejectionReason,
		}))
	}
	return app, nil
}

// Withdraw lets the applicant retire a non-terminal application. Any open
// work item closes with it.
func (e *Engine) Withdraw(ctx context.Context, applicationID, applicantID, reason string) (app *models.Application, err error) {
	ctx, span := e.obs.StartSpan(ctx, "engine.withdraw")
	defer span.End()
	started := time.Now()
	defer func() { e.observe(ctx, "withdraw", started, err) }()

	app, err = e.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status.IsTerminal() {
		return nil, errors.NewInvalidStateError("application already reached a final decision",
			fmt.Sprintf("status: %s", app.Status))
	}
	if app.ApplicantID != applicantID {
		return nil, errors.NewAuthorizationError("only the applicant can withdraw",
			fmt.Sprintf("application: %s", applicationID))
	}

	now := e.clock().UTC()
	var stage *models.Stage
	if app.CurrentStage != nil {
		s := *app.CurrentStage
		stage = &s
	}
	app.Status = models.StatusWithdrawn
	app.CurrentStage = nil
	app.DecidedAt = &now

	result := &store.TransitionResult{App: app}
	if item, itemErr := e.store.OpenWorkItem(ctx, app.ID); itemErr == nil {
		e.queue.Complete(item, models.OutcomeWithdrawn, now)
		result.CloseItem = item
	} else if !errors.IsNotFound(itemErr) {
		return nil, itemErr
	}
	result.Actions = append(result.Actions, e.newAction(app.ID, stage, applicantID, models.ActionWithdrawn, reason, now))

	if err = e.store.ApplyTransition(ctx, result); err != nil {
		return nil, err
	}
	e.publish(result.Actions)
	e.logger.Info("application withdrawn", map[string]interface{}{
		"applicationId": app.ID,
		"number":        app.Number,
	})
	e.dispatch(ctx, e.applicantEvent(notify.EventApplicationWithdrawn, app, nil))
	return app, nil
}

// ==========================
// Shared transition plumbing
// ==========================

// runEligibility applies the program pre-check for tracks that require it.
// A failure turns the pending transition into an immediate rejection: no
// stage entry, no work item. Returns whether the application may proceed.
func (e *Engine) runEligibility(ctx context.Context, app *models.Application, track *models.TrackDefinition, result *store.TransitionResult, now time.Time) (bool, error) {
	if !track.RequiresEligibility {
		return true, nil
	}
	if e.criteria == nil {
		return false, errors.NewInternalError("track requires eligibility but no criteria provider is wired",
			fmt.Errorf("track: %s", track.ID))
	}
	criteria, err := e.criteria.CriteriaFor(ctx, track.ProgramID)
	if err != nil {
		return false, err
	}
	outcome := scoring.EvaluateEligibility(app, criteria, e.eligibility, now)
	app.EligibilityScore = outcome.Score
	app.EligibilityFlags = outcome.Flags
	passed := outcome.Passed
	app.MeetsEligibility = &passed
	if passed {
		return true, nil
	}
	app.Status = models.StatusRejected
	app.CurrentStage = nil
	app.RejectionReason = "failed program eligibility"
	app.RejectionNotes = strings.Join(outcome.Flags, "; ")
	app.DecidedAt = &now
	result.Actions = append(result.Actions,
		e.newAction(app.ID, nil, "", models.ActionEligibilityFailed, app.RejectionNotes, now))
	return false, nil
}

// enterStage points the application at a review stage and enqueues its work
// item, auto-assigning when the stage pool has capacity. Assignment failures
// degrade to an unassigned pending item.
func (e *Engine) enterStage(ctx context.Context, app *models.Application, track *models.TrackDefinition, stage models.Stage, result *store.TransitionResult, now time.Time) *models.Reviewer {
	app.Status = stage.ReviewStatus()
	app.CurrentStage = &stage

	item := e.queue.Build(app, stage, e.sla.DueAt(track, stage, now), now)
	result.NewItem = item

	pool, err := e.directory.PoolFor(ctx, stage)
	if err != nil {
		e.logger.Warn("reviewer pool lookup failed, leaving item unassigned", map[string]interface{}{
			"stage": string(stage),
			"error": err.Error(),
		})
		metrics.AutoAssignments.WithLabelValues(string(stage), "unassigned").Inc()
		return nil
	}
	assignee := e.queue.AutoAssign(ctx, item, pool, now)
	if assignee == nil {
		return nil
	}
	result.Actions = append(result.Actions, e.newAction(app.ID, &stage, "", models.ActionAutoAssigned,
		fmt.Sprintf("auto-assigned to %s", assignee.ID), now))
	return assignee
}

// changeRequestStage recovers the stage that asked for changes from the audit
// trail, which is the ground truth once CurrentStage has been cleared.
func (e *Engine) changeRequestStage(ctx context.Context, applicationID string) (models.Stage, error) {
	actions, err := e.store.ListActions(ctx, applicationID)
	if err != nil {
		return "", err
	}
	for i := len(actions) - 1; i >= 0; i-- {
		if actions[i].Action == models.ActionChangesRequested && actions[i].Stage != nil {
			return *actions[i].Stage, nil
		}
	}
	return "", errors.NewInternalError("no change request on record",
		fmt.Errorf("application: %s", applicationID))
}

func (e *Engine) newAction(applicationID string, stage *models.Stage, actorID string, kind models.ActionKind, notes string, now time.Time) models.ReviewAction {
	var stageCopy *models.Stage
	if stage != nil {
		s := *stage
		stageCopy = &s
	}
	return models.ReviewAction{
		ID:            uuid.New().String(),
		ApplicationID: applicationID,
		Stage:         stageCopy,
		ActorID:       actorID,
		Action:        kind,
		Notes:         notes,
		CreatedAt:     now,
	}
}

// publish mirrors committed actions to the audit sink. Called only after
// ApplyTransition succeeds.
func (e *Engine) publish(actions []models.ReviewAction) {
	for _, action := range actions {
		e.sink.Publish(action)
	}
}

func (e *Engine) dispatch(ctx context.Context, event notify.Event) {
	if err := e.notifier.Notify(ctx, event); err != nil {
		e.logger.Warn("notification dispatch failed", map[string]interface{}{
			"event":         string(event.Kind),
			"applicationId": event.ApplicationID,
			"error":         err.Error(),
		})
	}
}

func (e *Engine) applicantEvent(kind notify.EventKind, app *models.Application, metadata map[string]interface{}) notify.Event {
	return notify.Event{
		Kind:              kind,
		ApplicationID:     app.ID,
		ApplicationNumber: app.Number,
		Stage:             app.CurrentStage,
		Priority:          notify.PriorityNormal,
		Recipients:        []notify.Recipient{notify.ApplicantRecipient(app)},
		Metadata:          metadata,
		OccurredAt:        e.clock().UTC(),
	}
}

func (e *Engine) notifyAssignment(ctx context.Context, app *models.Application, item *models.WorkItem, assignee *models.Reviewer) {
	if item == nil || assignee == nil {
		return
	}
	stage := item.Stage
	e.dispatch(ctx, notify.Event{
		Kind:              notify.EventWorkItemAssigned,
		ApplicationID:     app.ID,
		ApplicationNumber: app.Number,
		Stage:             &stage,
		Priority:          notify.PriorityNormal,
		Recipients:        []notify.Recipient{notify.ReviewerRecipient(*assignee)},
		Metadata: map[string]interface{}{
			"deadline": item.SLADueAt.Format("2006-01-02"),
		},
		OccurredAt: e.clock().UTC(),
	})
}

// observe records the operation counters and span-side metrics for one
// engine call. Success and failure are distinguished by err.
func (e *Engine) observe(ctx context.Context, operation string, started time.Time, err error) {
	duration := time.Since(started)
	if err != nil {
		metrics.TransitionsFailed.WithLabelValues(operation, string(errors.CodeOf(err))).Inc()
		e.obs.RecordTransition(ctx, operation, "error")
		return
	}
	metrics.TransitionsTotal.WithLabelValues(operation).Inc()
	metrics.TransitionDuration.WithLabelValues(operation).Observe(duration.Seconds())
	e.obs.RecordTransition(ctx, operation, "ok")
	e.obs.RecordTransitionDuration(ctx, operation, duration, "ok")
}
