// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"poultry-review-engine/internal/common/errors"
	"poultry-review-engine/internal/common/logger"
	"poultry-review-engine/internal/models"
)

const applicationColumns = `id, number, track_id, program_id, applicant_id, profile,
	status, current_stage, priority_score, eligibility_score, eligibility_flags,
	meets_eligibility, stage_approvals, rejection_reason, rejection_notes,
	changes_requested, changes_deadline, submitted_at, resubmitted_at, decided_at,
	created_at, updated_at, version`

const workItemColumns = `id, application_id, application_number, track_id, stage,
	status, assigned_to, assigned_at, auto_assigned, priority, enqueued_at,
	sla_due_at, is_overdue, completed_at, outcome, version`

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS applications (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		track_id TEXT NOT NULL,
		program_id TEXT NOT NULL DEFAULT '',
		applicant_id TEXT NOT NULL,
		profile JSONB NOT NULL,
		status TEXT NOT NULL,
		current_stage TEXT,
		priority_score INTEGER NOT NULL DEFAULT 0,
		eligibility_score INTEGER NOT NULL DEFAULT 0,
		eligibility_flags JSONB,
		meets_eligibility BOOLEAN,
		stage_approvals JSONB,
		rejection_reason TEXT NOT NULL DEFAULT '',
		rejection_notes TEXT NOT NULL DEFAULT '',
		changes_requested TEXT NOT NULL DEFAULT '',
		changes_deadline TIMESTAMPTZ,
		submitted_at TIMESTAMPTZ NOT NULL,
		resubmitted_at TIMESTAMPTZ,
		decided_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		version INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS work_items (
		id TEXT PRIMARY KEY,
		application_id TEXT NOT NULL REFERENCES applications(id),
		application_number TEXT NOT NULL,
		track_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		status TEXT NOT NULL,
		assigned_to TEXT NOT NULL DEFAULT '',
		assigned_at TIMESTAMPTZ,
		auto_assigned BOOLEAN NOT NULL DEFAULT FALSE,
		priority INTEGER NOT NULL DEFAULT 0,
		enqueued_at TIMESTAMPTZ NOT NULL,
		sla_due_at TIMESTAMPTZ NOT NULL,
		is_overdue BOOLEAN NOT NULL DEFAULT FALSE,
		completed_at TIMESTAMPTZ,
		outcome TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS review_actions (
		id TEXT PRIMARY KEY,
		application_id TEXT NOT NULL,
		stage TEXT,
		actor_id TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS application_numbers (
		prefix TEXT NOT NULL,
		year INTEGER NOT NULL,
		last_seq INTEGER NOT NULL,
		PRIMARY KEY (prefix, year)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_work_items_queue
		ON work_items(stage, priority DESC, enqueued_at) WHERE status <> 'completed'`,
	`CREATE INDEX IF NOT EXISTS idx_work_items_application
		ON work_items(application_id) WHERE status <> 'completed'`,
	`CREATE INDEX IF NOT EXISTS idx_work_items_due
		ON work_items(sla_due_at) WHERE status <> 'completed' AND is_overdue = FALSE`,
	`CREATE INDEX IF NOT EXISTS idx_review_actions_application
		ON review_actions(application_id, created_at)`,
}

// PostgresStore is the production Store. ApplyTransition runs inside one
// transaction with version-guarded UPDATEs, so two racing transitions on the
// same application or work item resolve to exactly one winner.
type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "postgres-store"}),
	}
}

// Migrate applies the schema. Statements are idempotent so startup can run
// them unconditionally.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.NewInternalError("failed to apply schema statement", err)
		}
	}
	s.logger.Info("database schema ready", map[string]interface{}{
		"statements": len(schemaStatements),
	})
	return nil
}

func (s *PostgresStore) NextApplicationNumber(ctx context.Context, prefix string, year int) (string, error) {
	var seq int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO application_numbers (prefix, year, last_seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, year)
		DO UPDATE SET last_seq = application_numbers.last_seq + 1
		RETURNING last_seq`, prefix, year).Scan(&seq)
	if err != nil {
		return "", errors.NewInternalError("failed to issue application number", err)
	}
	return fmt.Sprintf("%s-%d-%06d", prefix, year, seq), nil
}

func (s *PostgresStore) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE id = $1`, id)
	app, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("application", id)
	}
	if err != nil {
		return nil, errors.NewInternalError("failed to load application", err)
	}
	return app, nil
}

func (s *PostgresStore) GetApplicationByNumber(ctx context.Context, number string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE number = $1`, number)
	app, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("application", number)
	}
	if err != nil {
		return nil, errors.NewInternalError("failed to load application", err)
	}
	return app, nil
}

func (s *PostgresStore) GetWorkItem(ctx context.Context, id string) (*models.WorkItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+workItemColumns+`
		FROM work_items
		WHERE id = $1`, id)
	item, err := scanWorkItem(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("work item", id)
	}
	if err != nil {
		return nil, errors.NewInternalError("failed to load work item", err)
	}
	return item, nil
}

func (s *PostgresStore) OpenWorkItem(ctx context.Context, applicationID string) (*models.WorkItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+workItemColumns+`
		FROM work_items
		WHERE application_id = $1 AND status <> 'completed'
		LIMIT 1`, applicationID)
	item, err := scanWorkItem(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("open work item for application", applicationID)
	}
	if err != nil {
		return nil, errors.NewInternalError("failed to load open work item", err)
	}
	return item, nil
}

func (s *PostgresStore) ListWorkItems(ctx context.Context, stage models.Stage, filter QueueFilter) ([]models.WorkItem, error) {
	query := `
		SELECT ` + workItemColumns + `
		FROM work_items
		WHERE stage = $1`
	args := []interface{}{string(stage)}

	if !filter.IncludeCompleted {
		query += ` AND status <> 'completed'`
	}
	if filter.PendingOnly {
		query += ` AND status = 'pending'`
	}
	if filter.ReviewerID != "" {
		args = append(args, filter.ReviewerID)
		query += fmt.Sprintf(` AND assigned_to = $%d`, len(args))
	}
	query += ` ORDER BY priority DESC, enqueued_at ASC, id ASC`

	return s.queryWorkItems(ctx, query, args...)
}

func (s *PostgresStore) ListOverdueCandidates(ctx context.Context, stage *models.Stage, asOf time.Time) ([]models.WorkItem, error) {
	query := `
		SELECT ` + workItemColumns + `
		FROM work_items
		WHERE status <> 'completed' AND is_overdue = FALSE AND sla_due_at < $1`
	args := []interface{}{asOf}

	if stage != nil {
		args = append(args, string(*stage))
		query += fmt.Sprintf(` AND stage = $%d`, len(args))
	}
	query += ` ORDER BY priority DESC, enqueued_at ASC, id ASC`

	return s.queryWorkItems(ctx, query, args...)
}

func (s *PostgresStore) MarkOverdue(ctx context.Context, itemID string, expectVersion int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE work_items
		SET is_overdue = TRUE, version = version + 1
		WHERE id = $1 AND version = $2 AND status <> 'completed' AND is_overdue = FALSE`,
		itemID, expectVersion)
	if err != nil {
		return false, errors.NewInternalError("failed to flag overdue work item", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.NewInternalError("failed to flag overdue work item", err)
	}
	if affected > 0 {
		return true, nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM work_items WHERE id = $1)`, itemID).Scan(&exists)
	if err != nil {
		return false, errors.NewInternalError("failed to flag overdue work item", err)
	}
	if !exists {
		return false, errors.NewNotFoundError("work item", itemID)
	}
	// The item moved under the sweep: already flagged, completed or rewritten.
	return false, nil
}

func (s *PostgresStore) ListActions(ctx context.Context, applicationID string) ([]models.ReviewAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, application_id, stage, actor_id, action, notes, created_at
		FROM review_actions
		WHERE application_id = $1
		ORDER BY created_at ASC, id ASC`, applicationID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list review actions", err)
	}
	defer rows.Close()

	var actions []models.ReviewAction
	for rows.Next() {
		var action models.ReviewAction
		var stage sql.NullString
		if err := rows.Scan(&action.ID, &action.ApplicationID, &stage,
			&action.ActorID, &action.Action, &action.Notes, &action.CreatedAt); err != nil {
			return nil, errors.NewInternalError("failed to scan review action", err)
		}
		if stage.Valid {
			st := models.Stage(stage.String)
			action.Stage = &st
		}
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to list review actions", err)
	}
	return actions, nil
}

func (s *PostgresStore) CountAssigned(ctx context.Context, reviewerID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM work_items
		WHERE assigned_to = $1 AND status <> 'completed'`, reviewerID).Scan(&count)
	if err != nil {
		return 0, errors.NewInternalError("failed to count assigned work items", err)
	}
	return count, nil
}

func (s *PostgresStore) CountOpenByStage(ctx context.Context) (map[models.Stage]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stage, COUNT(*)
		FROM work_items
		WHERE status <> 'completed'
		GROUP BY stage`)
	if err != nil {
		return nil, errors.NewInternalError("failed to count open work items", err)
	}
	defer rows.Close()

	counts := make(map[models.Stage]int)
	for rows.Next() {
		var stage string
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, errors.NewInternalError("failed to scan queue depth", err)
		}
		counts[models.Stage(stage)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to count open work items", err)
	}
	return counts, nil
}

func (s *PostgresStore) ApplyTransition(ctx context.Context, result *TransitionResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternalError("failed to begin transition write", err)
	}
	defer tx.Rollback()

	if result.App != nil {
		result.App.UpdatedAt = time.Now().UTC()
		if result.App.Version == 0 {
			err = s.insertApplication(ctx, tx, result.App)
		} else {
			err = s.updateApplication(ctx, tx, result.App)
		}
		if err != nil {
			return err
		}
	}
	if result.CloseItem != nil {
		if err := s.updateWorkItem(ctx, tx, result.CloseItem); err != nil {
			return err
		}
	}
	if result.UpdateItem != nil {
		if err := s.updateWorkItem(ctx, tx, result.UpdateItem); err != nil {
			return err
		}
	}
	if result.NewItem != nil {
		if err := s.insertWorkItem(ctx, tx, result.NewItem); err != nil {
			return err
		}
	}
	for i := range result.Actions {
		if err := s.insertAction(ctx, tx, &result.Actions[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternalError("failed to commit transition write", err)
	}

	if result.App != nil {
		result.App.Version++
	}
	if result.CloseItem != nil {
		result.CloseItem.Version++
	}
	if result.UpdateItem != nil {
		result.UpdateItem.Version++
	}
	if result.NewItem != nil {
		result.NewItem.Version = 1
	}
	return nil
}

func (s *PostgresStore) insertApplication(ctx context.Context, tx *sql.Tx, app *models.Application) error {
	profile, flags, approvals, err := marshalApplicationJSON(app)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO applications (
			id, number, track_id, program_id, applicant_id, profile,
			status, current_stage, priority_score, eligibility_score, eligibility_flags,
			meets_eligibility, stage_approvals, rejection_reason, rejection_notes,
			changes_requested, changes_deadline, submitted_at, resubmitted_at, decided_at,
			created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, 1)`,
		app.ID, app.Number, app.TrackID, app.ProgramID, app.ApplicantID, profile,
		string(app.Status), nullStage(app.CurrentStage), app.PriorityScore, app.EligibilityScore, flags,
		nullBool(app.MeetsEligibility), approvals, app.RejectionReason, app.RejectionNotes,
		app.ChangesRequested, nullTime(app.ChangesDeadline), app.SubmittedAt,
		nullTime(app.ResubmittedAt), nullTime(app.DecidedAt), app.CreatedAt, app.UpdatedAt)
	if err != nil {
		return errors.NewInternalError("failed to insert application", err)
	}
	return nil
}

func (s *PostgresStore) updateApplication(ctx context.Context, tx *sql.Tx, app *models.Application) error {
	profile, flags, approvals, err := marshalApplicationJSON(app)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE applications
		SET profile = $1, status = $2, current_stage = $3, priority_score = $4,
			eligibility_score = $5, eligibility_flags = $6, meets_eligibility = $7,
			stage_approvals = $8, rejection_reason = $9, rejection_notes = $10,
			changes_requested = $11, changes_deadline = $12, resubmitted_at = $13,
			decided_at = $14, updated_at = $15, version = version + 1
		WHERE id = $16 AND version = $17`,
		profile, string(app.Status), nullStage(app.CurrentStage), app.PriorityScore,
		app.EligibilityScore, flags, nullBool(app.MeetsEligibility),
		approvals, app.RejectionReason, app.RejectionNotes,
		app.ChangesRequested, nullTime(app.ChangesDeadline), nullTime(app.ResubmittedAt),
		nullTime(app.DecidedAt), app.UpdatedAt, app.ID, app.Version)
	if err != nil {
		return errors.NewInternalError("failed to update application", err)
	}
	return s.requireAffected(ctx, tx, res, "applications", "application", app.ID)
}

func (s *PostgresStore) insertWorkItem(ctx context.Context, tx *sql.Tx, item *models.WorkItem) error {
	var openID string
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM work_items
		WHERE application_id = $1 AND status <> 'completed'
		LIMIT 1`, item.ApplicationID).Scan(&openID)
	if err == nil {
		return errors.NewConflictError(
			"application already has an open work item",
			fmt.Sprintf("application: %s, work item: %s", item.ApplicationID, openID))
	}
	if err != sql.ErrNoRows {
		return errors.NewInternalError("failed to check open work items", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO work_items (
			id, application_id, application_number, track_id, stage,
			status, assigned_to, assigned_at, auto_assigned, priority, enqueued_at,
			sla_due_at, is_overdue, completed_at, outcome, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 1)`,
		item.ID, item.ApplicationID, item.ApplicationNumber, item.TrackID, string(item.Stage),
		string(item.Status), item.AssignedTo, nullTime(item.AssignedAt), item.AutoAssigned,
		item.Priority, item.EnqueuedAt, item.SLADueAt, item.IsOverdue,
		nullTime(item.CompletedAt), string(item.Outcome))
	if err != nil {
		return errors.NewInternalError("failed to insert work item", err)
	}
	return nil
}

func (s *PostgresStore) updateWorkItem(ctx context.Context, tx *sql.Tx, item *models.WorkItem) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE work_items
		SET status = $1, assigned_to = $2, assigned_at = $3, auto_assigned = $4,
			is_overdue = $5, completed_at = $6, outcome = $7, version = version + 1
		WHERE id = $8 AND version = $9 AND status <> 'completed'`,
		string(item.Status), item.AssignedTo, nullTime(item.AssignedAt), item.AutoAssigned,
		item.IsOverdue, nullTime(item.CompletedAt), string(item.Outcome),
		item.ID, item.Version)
	if err != nil {
		return errors.NewInternalError("failed to update work item", err)
	}
	return s.requireAffected(ctx, tx, res, "work_items", "work item", item.ID)
}

func (s *PostgresStore) insertAction(ctx context.Context, tx *sql.Tx, action *models.ReviewAction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO review_actions (id, application_id, stage, actor_id, action, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		action.ID, action.ApplicationID, nullStage(action.Stage), action.ActorID,
		string(action.Action), action.Notes, action.CreatedAt)
	if err != nil {
		return errors.NewInternalError("failed to insert review action", err)
	}
	return nil
}

// requireAffected turns a zero-row guarded UPDATE into the right typed error:
// conflict when the row exists at another version, not-found when it is gone.
func (s *PostgresStore) requireAffected(ctx context.Context, tx *sql.Tx, res sql.Result, table, resource, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.NewInternalError("failed to read affected rows", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return errors.NewInternalError("failed to check row existence", err)
	}
	if !exists {
		return errors.NewNotFoundError(resource, id)
	}
	return errors.NewConflictError(
		fmt.Sprintf("%s was modified concurrently", resource),
		fmt.Sprintf("%s: %s", resource, id))
}

func (s *PostgresStore) queryWorkItems(ctx context.Context, query string, args ...interface{}) ([]models.WorkItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternalError("failed to list work items", err)
	}
	defer rows.Close()

	var items []models.WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan work item", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to list work items", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var app models.Application
	var profile, flags, approvals []byte
	var currentStage sql.NullString
	var meetsEligibility sql.NullBool
	var changesDeadline, resubmittedAt, decidedAt sql.NullTime

	err := row.Scan(&app.ID, &app.Number, &app.TrackID, &app.ProgramID, &app.ApplicantID, &profile,
		&app.Status, &currentStage, &app.PriorityScore, &app.EligibilityScore, &flags,
		&meetsEligibility, &approvals, &app.RejectionReason, &app.RejectionNotes,
		&app.ChangesRequested, &changesDeadline, &app.SubmittedAt, &resubmittedAt, &decidedAt,
		&app.CreatedAt, &app.UpdatedAt, &app.Version)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(profile, &app.Profile); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	if len(flags) > 0 {
		if err := json.Unmarshal(flags, &app.EligibilityFlags); err != nil {
			return nil, fmt.Errorf("unmarshal eligibility flags: %w", err)
		}
	}
	if len(approvals) > 0 {
		if err := json.Unmarshal(approvals, &app.StageApprovals); err != nil {
			return nil, fmt.Errorf("unmarshal stage approvals: %w", err)
		}
	}
	if currentStage.Valid {
		stage := models.Stage(currentStage.String)
		app.CurrentStage = &stage
	}
	if meetsEligibility.Valid {
		app.MeetsEligibility = &meetsEligibility.Bool
	}
	app.ChangesDeadline = timePtr(changesDeadline)
	app.ResubmittedAt = timePtr(resubmittedAt)
	app.DecidedAt = timePtr(decidedAt)
	return &app, nil
}

func scanWorkItem(row rowScanner) (*models.WorkItem, error) {
	var item models.WorkItem
	var assignedAt, completedAt sql.NullTime

	err := row.Scan(&item.ID, &item.ApplicationID, &item.ApplicationNumber, &item.TrackID, &item.Stage,
		&item.Status, &item.AssignedTo, &assignedAt, &item.AutoAssigned, &item.Priority, &item.EnqueuedAt,
		&item.SLADueAt, &item.IsOverdue, &completedAt, &item.Outcome, &item.Version)
	if err != nil {
		return nil, err
	}

	item.AssignedAt = timePtr(assignedAt)
	item.CompletedAt = timePtr(completedAt)
	return &item, nil
}

func marshalApplicationJSON(app *models.Application) (profile, flags, approvals []byte, err error) {
	profile, err = json.Marshal(app.Profile)
	if err != nil {
		return nil, nil, nil, errors.NewInternalError("failed to marshal farm profile", err)
	}
	if app.EligibilityFlags != nil {
		flags, err = json.Marshal(app.EligibilityFlags)
		if err != nil {
			return nil, nil, nil, errors.NewInternalError("failed to marshal eligibility flags", err)
		}
	}
	if app.StageApprovals != nil {
		approvals, err = json.Marshal(app.StageApprovals)
		if err != nil {
			return nil, nil, nil, errors.NewInternalError("failed to marshal stage approvals", err)
		}
	}
	return profile, flags, approvals, nil
}

func nullStage(stage *models.Stage) sql.NullString {
	if stage == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*stage), Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	copied := t.Time
	return &copied
}
