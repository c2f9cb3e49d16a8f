// internal/directory/directory.go

// Package directory answers who may review applications: the pool of
// officers staffing each stage and individual reviewer lookups. Production
// reads from Keycloak behind a Redis cache; tests and single-node setups use
// the static roster.
package directory

import (
	"context"
	"sort"
	"sync"

	"poultry-review-engine/internal/common/errors"
	"poultry-review-engine/internal/models"
)

// RoleForStage maps a review stage to the officer role staffing its queue.
// Program administrators authorize actions at every stage but are never part
// of an auto-assignment pool.
func RoleForStage(stage models.Stage) (models.ReviewerRole, bool) {
	switch stage {
	case models.StageConstituency:
		return models.RoleConstituencyOfficer, true
	case models.StageRegional:
		return models.RoleRegionalOfficer, true
	case models.StageNational:
		return models.RoleNationalOfficer, true
	}
	return "", false
}

// Directory is the reviewer identity collaborator.
type Directory interface {
	// PoolFor returns the active reviewers staffing a stage.
	PoolFor(ctx context.Context, stage models.Stage) ([]models.Reviewer, error)
	// Get returns one reviewer by ID.
	Get(ctx context.Context, id string) (*models.Reviewer, error)
}

// StaticDirectory serves a fixed roster.
type StaticDirectory struct {
	mu        sync.RWMutex
	reviewers map[string]models.Reviewer
}

func NewStaticDirectory(reviewers ...models.Reviewer) *StaticDirectory {
	d := &StaticDirectory{reviewers: make(map[string]models.Reviewer, len(reviewers))}
	for _, reviewer := range reviewers {
		d.reviewers[reviewer.ID] = reviewer
	}
	return d
}

// Upsert adds or replaces a roster entry.
func (d *StaticDirectory) Upsert(reviewer models.Reviewer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reviewers[reviewer.ID] = reviewer
}

func (d *StaticDirectory) PoolFor(_ context.Context, stage models.Stage) ([]models.Reviewer, error) {
	role, ok := RoleForStage(stage)
	if !ok {
		return nil, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var pool []models.Reviewer
	for _, reviewer := range d.reviewers {
		if reviewer.Role == role && reviewer.Active {
			pool = append(pool, reviewer)
		}
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
	return pool, nil
}

func (d *StaticDirectory) Get(_ context.Context, id string) (*models.Reviewer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	reviewer, ok := d.reviewers[id]
	if !ok {
		return nil, errors.NewNotFoundError("reviewer", id)
	}
	return &reviewer, nil
}
