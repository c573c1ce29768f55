package file

import (
	"context"
	"sort"
	"sync"

	"github.com/dukex/changewatch/pkg/models"
)

type ChangeEntryRepository struct {
	path string
	mu   sync.RWMutex
}

func newChangeEntryRepository(path string) (*ChangeEntryRepository, error) {
	repo := &ChangeEntryRepository{path: path}

	if _, err := repo.load(); err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *ChangeEntryRepository) InsertChangeEntry(_ context.Context, entry models.ChangeEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return err
	}

	return writeJSON(r.path, append(entries, entry))
}

func (r *ChangeEntryRepository) ChangeEntries(_ context.Context, targetURL string, limit int) ([]models.ChangeEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := r.load()
	if err != nil {
		return nil, err
	}

	result := make([]models.ChangeEntry, 0)

	for _, entry := range entries {
		if entry.Target.URL == targetURL {
			result = append(result, entry)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DetectedAt.After(result[j].DetectedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func (r *ChangeEntryRepository) load() ([]models.ChangeEntry, error) {
	var entries []models.ChangeEntry
	if err := readJSON(r.path, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}
