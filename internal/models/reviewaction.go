// internal/models/reviewaction.go
package models

import "time"

// ActionKind names what happened to an application. Resubmissions log
// ActionSubmitted with explanatory notes rather than a distinct kind.
type ActionKind string

const (
	ActionSubmitted         ActionKind = "submitted"
	ActionEligibilityFailed ActionKind = "eligibility_failed"
	ActionAutoAssigned      ActionKind = "auto_assigned"
	ActionClaimed           ActionKind = "claimed"
	ActionReviewStarted     ActionKind = "review_started"
	ActionReleased          ActionKind = "released"
	ActionApproved          ActionKind = "approved"
	ActionRejected          ActionKind = "rejected"
	ActionChangesRequested  ActionKind = "request_changes"
	ActionWithdrawn         ActionKind = "withdrawn"
)

// ReviewAction is one append-only audit record. ActorID is empty for automated
// actions. Records are never updated or deleted; they are the ground truth for
// who did what, when.
type ReviewAction struct {
	ID            string     `json:"id"`
	ApplicationID string     `json:"applicationId"`
	Stage         *Stage     `json:"stage,omitempty"`
	ActorID       string     `json:"actorId,omitempty"`
	Action        ActionKind `json:"action"`
	Notes         string     `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}
