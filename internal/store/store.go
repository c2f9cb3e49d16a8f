// internal/store/store.go
package store

import (
	"context"
	"time"

	"poultry-review-engine/internal/models"
)

// QueueFilter narrows work-item listings. The zero value lists every open
// item at the stage.
type QueueFilter struct {
	// ReviewerID restricts to items assigned to one reviewer.
	ReviewerID string
	// PendingOnly restricts to unclaimed items (the "available" view).
	PendingOnly bool
	// IncludeCompleted widens the listing to closed items.
	IncludeCompleted bool
}

// TransitionResult is the atomic write unit for one workflow transition: the
// new application snapshot plus the work-item and audit effects, applied
// together or not at all. Versions carried on App, CloseItem and UpdateItem
// are the versions the transition was computed from; a store finding newer
// state reports a conflict and writes nothing.
type TransitionResult struct {
	App        *models.Application
	NewItem    *models.WorkItem
	CloseItem  *models.WorkItem
	UpdateItem *models.WorkItem
	Actions    []models.ReviewAction
}

// Store is the persistence collaborator. Implementations must make
// ApplyTransition atomic and version-checked; everything else is plain reads
// plus the independent conditional writes the SLA sweep relies on.
type Store interface {
	// NextApplicationNumber issues the next human-readable number for the
	// prefix and year, monotonic within that pair.
	NextApplicationNumber(ctx context.Context, prefix string, year int) (string, error)

	GetApplication(ctx context.Context, id string) (*models.Application, error)
	GetApplicationByNumber(ctx context.Context, number string) (*models.Application, error)

	GetWorkItem(ctx context.Context, id string) (*models.WorkItem, error)
	// OpenWorkItem returns the single non-completed item for an application,
	// or a not-found error when none is open.
	OpenWorkItem(ctx context.Context, applicationID string) (*models.WorkItem, error)
	ListWorkItems(ctx context.Context, stage models.Stage, filter QueueFilter) ([]models.WorkItem, error)

	// ListOverdueCandidates returns open items past their deadline that are
	// not yet flagged.
	ListOverdueCandidates(ctx context.Context, stage *models.Stage, asOf time.Time) ([]models.WorkItem, error)
	// MarkOverdue conditionally flags one item; false means the item moved
	// under the sweep (already flagged, completed or rewritten).
	MarkOverdue(ctx context.Context, itemID string, expectVersion int) (bool, error)

	ListActions(ctx context.Context, applicationID string) ([]models.ReviewAction, error)

	// CountAssigned derives a reviewer's load: open items assigned to them.
	CountAssigned(ctx context.Context, reviewerID string) (int, error)
	// CountOpenByStage feeds the queue depth gauge.
	CountOpenByStage(ctx context.Context) (map[models.Stage]int, error)

	ApplyTransition(ctx context.Context, result *TransitionResult) error
}
