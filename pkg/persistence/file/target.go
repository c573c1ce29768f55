package file

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dukex/changewatch/pkg/models"
	"github.com/dukex/changewatch/pkg/persistence"
	"github.com/google/uuid"
)

// TargetRepository stores every target in one JSON file. Each call reads the
// file again so processes sharing a directory see each other's writes.
type TargetRepository struct {
	path string
	mu   sync.RWMutex
}

func newTargetRepository(path string) (*TargetRepository, error) {
	repo := &TargetRepository{path: path}

	if _, err := repo.load(); err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *TargetRepository) Targets(_ context.Context) ([]*models.Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets, err := r.load()
	if err != nil {
		return nil, err
	}

	return sortedTargets(targets, func(*models.Target) bool { return true }), nil
}

func (r *TargetRepository) TargetByID(_ context.Context, id string) (*models.Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets, err := r.load()
	if err != nil {
		return nil, persistence.NewTargetError("TargetByID", id, err)
	}

	target, ok := targets[id]
	if !ok {
		return nil, persistence.NewTargetError("TargetByID", id, persistence.ErrTargetNotFound)
	}

	return target, nil
}

func (r *TargetRepository) TargetByURL(_ context.Context, url string) (*models.Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets, err := r.load()
	if err != nil {
		return nil, persistence.NewTargetError("TargetByURL", url, err)
	}

	target := byURL(targets, url)
	if target == nil {
		return nil, persistence.NewTargetError("TargetByURL", url, persistence.ErrTargetNotFound)
	}

	return target, nil
}

// SaveTarget keeps the stored snapshot, last check and next check of an
// existing target; those only change through SetLastContent and ScheduleNext.
// target is updated in place with the stored values.
func (r *TargetRepository) SaveTarget(_ context.Context, target *models.Target) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	targets, err := r.load()
	if err != nil {
		return persistence.NewTargetError("SaveTarget", target.URL, err)
	}

	if existing := byURL(targets, target.URL); existing != nil && existing.ID != target.ID {
		return persistence.NewTargetError("SaveTarget", target.URL, persistence.ErrTargetAlreadyExists)
	}

	now := time.Now().UTC()

	if target.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate target ID: %w", err)
		}

		target.ID = id.String()
	}

	if target.CreatedAt.IsZero() {
		target.CreatedAt = now
	}

	target.UpdatedAt = now

	if stored, ok := targets[target.ID]; ok {
		target.LastContent = stored.LastContent
		target.LastChecked = stored.LastChecked
		target.NextCheckAt = stored.NextCheckAt
	}

	targets[target.ID] = cloneTarget(target)

	return r.store(targets)
}

func (r *TargetRepository) DeleteTarget(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	targets, err := r.load()
	if err != nil {
		return persistence.NewTargetError("DeleteTarget", id, err)
	}

	if _, ok := targets[id]; !ok {
		return persistence.NewTargetError("DeleteTarget", id, persistence.ErrTargetNotFound)
	}

	delete(targets, id)

	return r.store(targets)
}

func (r *TargetRepository) DueTargets(_ context.Context, now time.Time) ([]*models.Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets, err := r.load()
	if err != nil {
		return nil, err
	}

	return sortedTargets(targets, func(t *models.Target) bool { return t.IsDue(now) }), nil
}

func (r *TargetRepository) ScheduleNext(_ context.Context, url string, at time.Time) error {
	return r.update("ScheduleNext", url, func(t *models.Target) {
		next := at.UTC()
		t.NextCheckAt = &next
	})
}

func (r *TargetRepository) GetLastContent(_ context.Context, url string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets, err := r.load()
	if err != nil {
		return "", persistence.NewTargetError("GetLastContent", url, err)
	}

	target := byURL(targets, url)
	if target == nil {
		return "", persistence.NewTargetError("GetLastContent", url, persistence.ErrTargetNotFound)
	}

	return target.LastContent, nil
}

func (r *TargetRepository) SetLastContent(_ context.Context, url, content string, at time.Time) error {
	return r.update("SetLastContent", url, func(t *models.Target) {
		checked := at.UTC()
		t.LastContent = content
		t.LastChecked = &checked
	})
}

func (r *TargetRepository) update(op, url string, mutate func(*models.Target)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	targets, err := r.load()
	if err != nil {
		return persistence.NewTargetError(op, url, err)
	}

	current := byURL(targets, url)
	if current == nil {
		return persistence.NewTargetError(op, url, persistence.ErrTargetNotFound)
	}

	mutate(current)
	current.UpdatedAt = time.Now().UTC()

	if err := r.store(targets); err != nil {
		return persistence.NewTargetError(op, url, err)
	}

	return nil
}

// load reads the current file into a map keyed by target ID.
func (r *TargetRepository) load() (map[string]*models.Target, error) {
	var stored []*models.Target
	if err := readJSON(r.path, &stored); err != nil {
		return nil, err
	}

	targets := make(map[string]*models.Target, len(stored))
	for _, target := range stored {
		targets[target.ID] = target
	}

	return targets, nil
}

func (r *TargetRepository) store(targets map[string]*models.Target) error {
	return writeJSON(r.path, sortedTargets(targets, func(*models.Target) bool { return true }))
}

func byURL(targets map[string]*models.Target, url string) *models.Target {
	for _, target := range targets {
		if target.URL == url {
			return target
		}
	}

	return nil
}

func sortedTargets(targets map[string]*models.Target, keep func(*models.Target) bool) []*models.Target {
	result := make([]*models.Target, 0, len(targets))

	for _, target := range targets {
		if keep(target) {
			result = append(result, target)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}

		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result
}

func cloneTarget(t *models.Target) *models.Target {
	c := *t
	c.Recipients = append([]string(nil), t.Recipients...)

	if t.LastChecked != nil {
		v := *t.LastChecked
		c.LastChecked = &v
	}

	if t.NextCheckAt != nil {
		v := *t.NextCheckAt
		c.NextCheckAt = &v
	}

	return &c
}
