// Package persistence provides the storage contracts for targets, change entries and audit records.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/changewatch/pkg/models"
)

// Persistence groups the repositories backed by one store.
type Persistence interface {
	TargetRepository() TargetRepository
	ChangeEntryRepository() ChangeEntryRepository
	AuditRecordRepository() AuditRecordRepository

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// TargetRepository stores monitored targets and their last observed content.
type TargetRepository interface {
	Targets(ctx context.Context) ([]*models.Target, error)
	// TargetByID returns ErrTargetNotFound when no target has the id.
	TargetByID(ctx context.Context, id string) (*models.Target, error)
	// TargetByURL returns ErrTargetNotFound when no target has the url.
	TargetByURL(ctx context.Context, url string) (*models.Target, error)
	// SaveTarget inserts or updates by ID, assigning an ID and timestamps when
	// missing. A URL already owned by another target yields ErrTargetAlreadyExists.
	// Updates never touch LastContent, LastChecked or NextCheckAt; target gets
	// the stored values back.
	SaveTarget(ctx context.Context, target *models.Target) error
	DeleteTarget(ctx context.Context, id string) error

	// DueTargets returns the active targets whose next check is at or before now.
	DueTargets(ctx context.Context, now time.Time) ([]*models.Target, error)
	ScheduleNext(ctx context.Context, url string, at time.Time) error

	GetLastContent(ctx context.Context, url string) (string, error)
	// SetLastContent replaces the snapshot and marks the target checked at at.
	SetLastContent(ctx context.Context, url, content string, at time.Time) error
}

// ChangeEntryRepository is append-only.
type ChangeEntryRepository interface {
	InsertChangeEntry(ctx context.Context, entry models.ChangeEntry) error
	// ChangeEntries returns the newest entries first; limit <= 0 returns all.
	ChangeEntries(ctx context.Context, targetURL string, limit int) ([]models.ChangeEntry, error)
}

// AuditRecordRepository is write-once per workflow id.
type AuditRecordRepository interface {
	// InsertAuditRecord returns ErrAuditRecordExists if the workflow id was already recorded.
	InsertAuditRecord(ctx context.Context, record models.AuditRecord) error
	// AuditRecords returns the newest records first; limit <= 0 returns all.
	AuditRecords(ctx context.Context, targetURL string, limit int) ([]models.AuditRecord, error)
	AuditRecordByWorkflowID(ctx context.Context, workflowID string) (*models.AuditRecord, error)
}
