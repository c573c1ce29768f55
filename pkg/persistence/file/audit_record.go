package file

import (
	"context"
	"sort"
	"sync"

	"github.com/dukex/changewatch/pkg/models"
	"github.com/dukex/changewatch/pkg/persistence"
)

type AuditRecordRepository struct {
	path string
	mu   sync.RWMutex
}

func newAuditRecordRepository(path string) (*AuditRecordRepository, error) {
	repo := &AuditRecordRepository{path: path}

	if _, err := repo.load(); err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *AuditRecordRepository) InsertAuditRecord(_ context.Context, record models.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return persistence.NewAuditError("InsertAuditRecord", record.WorkflowID, err)
	}

	if _, exists := records[record.WorkflowID]; exists {
		return persistence.NewAuditError("InsertAuditRecord", record.WorkflowID, persistence.ErrAuditRecordExists)
	}

	records[record.WorkflowID] = record

	if err := writeJSON(r.path, sortedRecords(records, "")); err != nil {
		return persistence.NewAuditError("InsertAuditRecord", record.WorkflowID, err)
	}

	return nil
}

func (r *AuditRecordRepository) AuditRecords(_ context.Context, targetURL string, limit int) ([]models.AuditRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records, err := r.load()
	if err != nil {
		return nil, err
	}

	result := sortedRecords(records, targetURL)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func (r *AuditRecordRepository) AuditRecordByWorkflowID(_ context.Context, workflowID string) (*models.AuditRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records, err := r.load()
	if err != nil {
		return nil, persistence.NewAuditError("AuditRecordByWorkflowID", workflowID, err)
	}

	record, ok := records[workflowID]
	if !ok {
		return nil, persistence.NewAuditError("AuditRecordByWorkflowID", workflowID, persistence.ErrAuditRecordNotFound)
	}

	return &record, nil
}

func (r *AuditRecordRepository) load() (map[string]models.AuditRecord, error) {
	var stored []models.AuditRecord
	if err := readJSON(r.path, &stored); err != nil {
		return nil, err
	}

	records := make(map[string]models.AuditRecord, len(stored))
	for _, record := range stored {
		records[record.WorkflowID] = record
	}

	return records, nil
}

// sortedRecords returns records newest first, restricted to targetURL unless it is empty.
func sortedRecords(records map[string]models.AuditRecord, targetURL string) []models.AuditRecord {
	result := make([]models.AuditRecord, 0, len(records))

	for _, record := range records {
		if targetURL == "" || record.Target.URL == targetURL {
			result = append(result, record)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].WorkflowID < result[j].WorkflowID
		}

		return result[i].StartedAt.After(result[j].StartedAt)
	})

	return result
}
