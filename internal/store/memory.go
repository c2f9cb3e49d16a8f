// internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"poultry-review-engine/internal/common/errors"
	"poultry-review-engine/internal/models"
)

// InMemoryStore keeps all state in maps behind one RWMutex. It backs tests
// and single-process deployments; the postgres store is the production
// implementation. Every read hands out copies so callers can never alias
// stored state.
type InMemoryStore struct {
	mu        sync.RWMutex
	apps      map[string]*models.Application
	appsByNum map[string]string
	items     map[string]*models.WorkItem
	actions   map[string][]models.ReviewAction
	sequences map[string]int
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		apps:      make(map[string]*models.Application),
		appsByNum: make(map[string]string),
		items:     make(map[string]*models.WorkItem),
		actions:   make(map[string][]models.ReviewAction),
		sequences: make(map[string]int),
	}
}

func (s *InMemoryStore) NextApplicationNumber(_ context.Context, prefix string, year int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("%s/%d", prefix, year)
	s.sequences[key]++
	return fmt.Sprintf("%s-%d-%06d", prefix, year, s.sequences[key]), nil
}

func (s *InMemoryStore) GetApplication(_ context.Context, id string) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.apps[id]
	if !ok {
		return nil, errors.NewNotFoundError("application", id)
	}
	return cloneApplication(app), nil
}

func (s *InMemoryStore) GetApplicationByNumber(_ context.Context, number string) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.appsByNum[number]
	if !ok {
		return nil, errors.NewNotFoundError("application", number)
	}
	return cloneApplication(s.apps[id]), nil
}

func (s *InMemoryStore) GetWorkItem(_ context.Context, id string) (*models.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, errors.NewNotFoundError("work item", id)
	}
	return cloneWorkItem(item), nil
}

func (s *InMemoryStore) OpenWorkItem(_ context.Context, applicationID string) (*models.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item := s.openItemLocked(applicationID); item != nil {
		return cloneWorkItem(item), nil
	}
	return nil, errors.NewNotFoundError("open work item for application", applicationID)
}

func (s *InMemoryStore) ListWorkItems(_ context.Context, stage models.Stage, filter QueueFilter) ([]models.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.WorkItem
	for _, item := range s.items {
		if item.Stage != stage {
			continue
		}
		if !matchesFilter(item, filter) {
			continue
		}
		out = append(out, *cloneWorkItem(item))
	}

	SortQueue(out)
	return out, nil
}

func (s *InMemoryStore) ListOverdueCandidates(_ context.Context, stage *models.Stage, asOf time.Time) ([]models.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.WorkItem
	for _, item := range s.items {
		if !item.Open() || item.IsOverdue {
			continue
		}
		if stage != nil && item.Stage != *stage {
			continue
		}
		if asOf.After(item.SLADueAt) {
			out = append(out, *cloneWorkItem(item))
		}
	}

	SortQueue(out)
	return out, nil
}

func (s *InMemoryStore) MarkOverdue(_ context.Context, itemID string, expectVersion int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return false, errors.NewNotFoundError("work item", itemID)
	}
	if item.Version != expectVersion || !item.Open() || item.IsOverdue {
		return false, nil
	}

	item.IsOverdue = true
	item.Version++
	return true, nil
}

func (s *InMemoryStore) ListActions(_ context.Context, applicationID string) ([]models.ReviewAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recorded := s.actions[applicationID]
	out := make([]models.ReviewAction, len(recorded))
	copy(out, recorded)
	return out, nil
}

func (s *InMemoryStore) CountAssigned(_ context.Context, reviewerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, item := range s.items {
		if item.Open() && item.AssignedTo == reviewerID {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) CountOpenByStage(_ context.Context) (map[models.Stage]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.Stage]int)
	for _, item := range s.items {
		if item.Open() {
			counts[item.Stage]++
		}
	}
	return counts, nil
}

func (s *InMemoryStore) ApplyTransition(_ context.Context, result *TransitionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every version before touching anything so a conflict leaves
	// the store untouched.
	if result.App != nil {
		if stored, ok := s.apps[result.App.ID]; ok {
			if stored.Version != result.App.Version {
				return errors.NewConflictError(
					"application was modified concurrently",
					fmt.Sprintf("application: %s", result.App.ID))
			}
		} else if result.App.Version != 0 {
			return errors.NewNotFoundError("application", result.App.ID)
		}
	}
	if result.CloseItem != nil {
		if err := s.checkItemLocked(result.CloseItem); err != nil {
			return err
		}
	}
	if result.UpdateItem != nil {
		if err := s.checkItemLocked(result.UpdateItem); err != nil {
			return err
		}
	}
	if result.NewItem != nil {
		appID := result.NewItem.ApplicationID
		open := s.openItemLocked(appID)
		// The item being closed in the same transition does not count against
		// the single-open-item rule.
		if open != nil && (result.CloseItem == nil || open.ID != result.CloseItem.ID) {
			return errors.NewConflictError(
				"application already has an open work item",
				fmt.Sprintf("application: %s, work item: %s", appID, open.ID))
		}
	}

	if result.App != nil {
		result.App.Version++
		result.App.UpdatedAt = time.Now().UTC()
		s.apps[result.App.ID] = cloneApplication(result.App)
		s.appsByNum[result.App.Number] = result.App.ID
	}
	if result.CloseItem != nil {
		result.CloseItem.Version++
		s.items[result.CloseItem.ID] = cloneWorkItem(result.CloseItem)
	}
	if result.UpdateItem != nil {
		result.UpdateItem.Version++
		s.items[result.UpdateItem.ID] = cloneWorkItem(result.UpdateItem)
	}
	if result.NewItem != nil {
		result.NewItem.Version = 1
		s.items[result.NewItem.ID] = cloneWorkItem(result.NewItem)
	}
	for _, action := range result.Actions {
		s.actions[action.ApplicationID] = append(s.actions[action.ApplicationID], action)
	}

	return nil
}

func (s *InMemoryStore) checkItemLocked(item *models.WorkItem) error {
	stored, ok := s.items[item.ID]
	if !ok {
		return errors.NewNotFoundError("work item", item.ID)
	}
	if stored.Version != item.Version {
		return errors.NewConflictError(
			"work item was modified concurrently",
			fmt.Sprintf("work item: %s", item.ID))
	}
	if !stored.Open() {
		return errors.NewConflictError(
			"work item is already completed",
			fmt.Sprintf("work item: %s", item.ID))
	}
	return nil
}

func (s *InMemoryStore) openItemLocked(applicationID string) *models.WorkItem {
	for _, item := range s.items {
		if item.ApplicationID == applicationID && item.Open() {
			return item
		}
	}
	return nil
}

func matchesFilter(item *models.WorkItem, filter QueueFilter) bool {
	if !filter.IncludeCompleted && !item.Open() {
		return false
	}
	if filter.PendingOnly && item.Status != models.WorkItemPending {
		return false
	}
	if filter.ReviewerID != "" && item.AssignedTo != filter.ReviewerID {
		return false
	}
	return true
}

// SortQueue orders items by descending priority, then entry time, then ID so
// repeated listings are byte-for-byte stable.
func SortQueue(items []models.WorkItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority > items[j].Priority
		}
		if !items[i].EnqueuedAt.Equal(items[j].EnqueuedAt) {
			return items[i].EnqueuedAt.Before(items[j].EnqueuedAt)
		}
		return strings.Compare(items[i].ID, items[j].ID) < 0
	})
}

func cloneApplication(app *models.Application) *models.Application {
	out := *app
	if app.CurrentStage != nil {
		stage := *app.CurrentStage
		out.CurrentStage = &stage
	}
	if app.MeetsEligibility != nil {
		meets := *app.MeetsEligibility
		out.MeetsEligibility = &meets
	}
	if app.Profile.RiskScore != nil {
		risk := *app.Profile.RiskScore
		out.Profile.RiskScore = &risk
	}
	if app.EligibilityFlags != nil {
		out.EligibilityFlags = append([]string(nil), app.EligibilityFlags...)
	}
	if app.StageApprovals != nil {
		out.StageApprovals = make(map[models.Stage]models.StageApproval, len(app.StageApprovals))
		for k, v := range app.StageApprovals {
			out.StageApprovals[k] = v
		}
	}
	out.ChangesDeadline = cloneTime(app.ChangesDeadline)
	out.ResubmittedAt = cloneTime(app.ResubmittedAt)
	out.DecidedAt = cloneTime(app.DecidedAt)
	return &out
}

func cloneWorkItem(item *models.WorkItem) *models.WorkItem {
	out := *item
	out.AssignedAt = cloneTime(item.AssignedAt)
	out.CompletedAt = cloneTime(item.CompletedAt)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
