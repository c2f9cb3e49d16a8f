// Package registry loads the track and program configuration that
// parametrizes the review workflow: which tracks exist, which stages they
// pass through, which programs they enroll into, and optionally a bundled
// reviewer roster for deployments without an identity provider.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"poultry-review-engine/internal/common/errors"
	"poultry-review-engine/internal/models"
)

// Registry is an immutable track catalog plus the mutable program capacity
// counters. Safe for concurrent use.
type Registry struct {
	Version   string
	UpdatedAt time.Time

	tracks map[string]*models.TrackDefinition
	order  []string

	mu        sync.Mutex
	programs  map[string]*models.ProgramCriteria
	reviewers []models.Reviewer
}

// registryFile is the on-disk shape.
type registryFile struct {
	Version   string                   `json:"version"`
	UpdatedAt time.Time                `json:"updatedAt"`
	Tracks    []models.TrackDefinition `json:"tracks"`
	Programs  []models.ProgramCriteria `json:"programs,omitempty"`
	Reviewers []models.Reviewer        `json:"reviewers,omitempty"`
}

// Load reads and validates a registry file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return Parse(data)
}

// Parse validates registry JSON against the embedded schema plus the
// semantic rules the schema cannot express, then builds the lookup maps.
func Parse(data []byte) (*Registry, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}

	reg := &Registry{
		Version:   file.Version,
		UpdatedAt: file.UpdatedAt,
		tracks:    make(map[string]*models.TrackDefinition, len(file.Tracks)),
		programs:  make(map[string]*models.ProgramCriteria, len(file.Programs)),
		reviewers: file.Reviewers,
	}

	for i := range file.Programs {
		program := file.Programs[i]
		if _, dup := reg.programs[program.ProgramID]; dup {
			return nil, fmt.Errorf("duplicate program ID: %s", program.ProgramID)
		}
		reg.programs[program.ProgramID] = &program
	}

	for i := range file.Tracks {
		track := file.Tracks[i]
		if err := validateTrack(&track, reg.programs); err != nil {
			return nil, err
		}
		if _, dup := reg.tracks[track.ID]; dup {
			return nil, fmt.Errorf("duplicate track ID: %s", track.ID)
		}
		reg.tracks[track.ID] = &track
		reg.order = append(reg.order, track.ID)
	}

	seen := make(map[string]bool, len(file.Reviewers))
	for _, reviewer := range file.Reviewers {
		if seen[reviewer.ID] {
			return nil, fmt.Errorf("duplicate reviewer ID: %s", reviewer.ID)
		}
		seen[reviewer.ID] = true
	}

	return reg, nil
}

// validateTrack enforces stage ordering and program cross-references.
func validateTrack(track *models.TrackDefinition, programs map[string]*models.ProgramCriteria) error {
	previousRank := -1
	for _, stage := range track.Stages {
		rank := models.StageRank(stage)
		if rank < 0 {
			return fmt.Errorf("track %s: unknown stage %q", track.ID, stage)
		}
		if rank <= previousRank {
			return fmt.Errorf("track %s: stages must follow the canonical order without repeats", track.ID)
		}
		previousRank = rank
	}

	for stage := range track.StageSLADays {
		if stage != models.StageEligibility && models.StageRank(stage) < 0 {
			return fmt.Errorf("track %s: SLA override for unknown stage %q", track.ID, stage)
		}
	}

	if track.RequiresEligibility && track.ProgramID == "" {
		return fmt.Errorf("track %s: eligibility pre-check requires a programId", track.ID)
	}
	if track.ProgramID != "" {
		if _, ok := programs[track.ProgramID]; !ok {
			return fmt.Errorf("track %s: references unknown program %q", track.ID, track.ProgramID)
		}
	}
	return nil
}

// Track returns the definition for a track ID.
func (r *Registry) Track(id string) (*models.TrackDefinition, bool) {
	track, ok := r.tracks[id]
	return track, ok
}

// Tracks returns the definitions in file order.
func (r *Registry) Tracks() []models.TrackDefinition {
	out := make([]models.TrackDefinition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.tracks[id])
	}
	return out
}

// CriteriaFor returns a copy of the admission criteria for a program.
func (r *Registry) CriteriaFor(_ context.Context, programID string) (models.ProgramCriteria, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	program, ok := r.programs[programID]
	if !ok {
		return models.ProgramCriteria{}, errors.NewNotFoundError("program", programID)
	}

	out := *program
	if program.RemainingSlots != nil {
		slots := *program.RemainingSlots
		out.RemainingSlots = &slots
	}
	if program.Deadline != nil {
		deadline := *program.Deadline
		out.Deadline = &deadline
	}
	return out, nil
}

// ConsumeSlot decrements a program's remaining capacity. Programs without a
// slot limit always succeed.
func (r *Registry) ConsumeSlot(_ context.Context, programID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	program, ok := r.programs[programID]
	if !ok {
		return errors.NewNotFoundError("program", programID)
	}
	if program.RemainingSlots == nil {
		return nil
	}
	if *program.RemainingSlots <= 0 {
		return errors.NewConflictError("program has no remaining slots",
			fmt.Sprintf("program: %s", programID))
	}
	*program.RemainingSlots--
	return nil
}

// Reviewers returns the bundled roster, used to seed a static directory when
// no identity provider is configured.
func (r *Registry) Reviewers() []models.Reviewer {
	out := make([]models.Reviewer, len(r.reviewers))
	copy(out, r.reviewers)
	return out
}
