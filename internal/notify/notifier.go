// internal/notify/notifier.go
package notify

import (
	"context"
	"time"

	"poultry-review-engine/internal/models"
)

// EventKind identifies the workflow moment a notification describes.
type EventKind string

const (
	EventApplicationSubmitted   EventKind = "application_submitted"
	EventApplicationResubmitted EventKind = "application_resubmitted"
	EventWorkItemAssigned       EventKind = "work_item_assigned"
	EventChangesRequested       EventKind = "changes_requested"
	EventApplicationApproved    EventKind = "application_approved"
	EventApplicationEnrolled    EventKind = "application_enrolled"
	EventApplicationRejected    EventKind = "application_rejected"
	EventApplicationWithdrawn   EventKind = "application_withdrawn"
	EventWorkItemOverdue        EventKind = "work_item_overdue"
)

// Priority gates SMS delivery: only high-priority events reach a phone.
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Recipient is a resolved delivery target. Empty channels are skipped.
type Recipient struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// Event is one notifiable workflow occurrence. Metadata feeds template
// placeholders (deadline, reason, reviewer, ...) beyond the standard fields.
type Event struct {
	Kind              EventKind
	ApplicationID     string
	ApplicationNumber string
	Stage             *models.Stage
	Priority          string
	Recipients        []Recipient
	Metadata          map[string]interface{}
	OccurredAt        time.Time
}

// Notifier delivers one event. Implementations must be safe for concurrent
// use; the engine calls through the async Dispatcher so delivery failures
// never surface to transitions.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NoopNotifier discards every event.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, Event) error { return nil }

// ApplicantRecipient builds the delivery target for the person who filed the
// application from the contact channels in the submitted profile.
func ApplicantRecipient(app *models.Application) Recipient {
	return Recipient{
		ID:    app.ApplicantID,
		Name:  app.Profile.FarmName,
		Email: app.Profile.Email.Address,
		Phone: app.Profile.Phone.Address,
	}
}

// ReviewerRecipient builds the delivery target for an assigned reviewer.
func ReviewerRecipient(rev models.Reviewer) Recipient {
	return Recipient{
		ID:    rev.ID,
		Name:  rev.Name,
		Email: rev.Email,
		Phone: rev.Phone,
	}
}
