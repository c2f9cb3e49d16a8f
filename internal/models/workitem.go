// internal/models/workitem.go
package models

import "time"

// WorkItemStatus tracks a queue entry through its lifetime. Claimed covers
// both manual claims and auto-assignment; InReview means the assignee has
// opened the application and is actively reviewing.
type WorkItemStatus string

const (
	WorkItemPending   WorkItemStatus = "pending"
	WorkItemClaimed   WorkItemStatus = "claimed"
	WorkItemInReview  WorkItemStatus = "in_review"
	WorkItemCompleted WorkItemStatus = "completed"
)

// WorkItemOutcome records why a completed item closed.
type WorkItemOutcome string

const (
	OutcomeApproved         WorkItemOutcome = "approved"
	OutcomeRejected         WorkItemOutcome = "rejected"
	OutcomeChangesRequested WorkItemOutcome = "changes_requested"
	OutcomeWithdrawn        WorkItemOutcome = "withdrawn"
)

// WorkItem is one queued unit of reviewer work: "this application needs a
// decision at this stage." At most one open (non-completed) item exists per
// application at any time.
type WorkItem struct {
	ID                string `json:"id"`
	ApplicationID     string `json:"applicationId"`
	ApplicationNumber string `json:"applicationNumber"`
	TrackID           string `json:"trackId"`
	Stage             Stage  `json:"stage"`

	Status       WorkItemStatus `json:"status"`
	AssignedTo   string         `json:"assignedTo,omitempty"`
	AssignedAt   *time.Time     `json:"assignedAt,omitempty"`
	AutoAssigned bool           `json:"autoAssigned,omitempty"`

	// Priority is copied from the application at enqueue time and never
	// recomputed mid-review, so queue order stays stable under reviewers.
	Priority   int       `json:"priority"`
	EnqueuedAt time.Time `json:"enqueuedAt"`

	SLADueAt  time.Time `json:"slaDueAt"`
	IsOverdue bool      `json:"isOverdue"`

	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	Outcome     WorkItemOutcome `json:"outcome,omitempty"`

	Version int `json:"version"`
}

// Open reports whether the item still needs a decision.
func (w *WorkItem) Open() bool {
	return w.Status != WorkItemCompleted
}
