package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/changewatch/pkg/models"
	"github.com/dukex/changewatch/pkg/persistence"
)

const auditColumns = `
	workflow_id
  , target_id
  , target_url
  , target_type
  , started_at
  , completed_at
  , success
  , error
  , changes_count
  , retry_count
  , final_step
  , duration_ms
  , content_length
`

// AuditRecordRepository handles audit record database operations.
type AuditRecordRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewAuditRecordRepository(db *sql.DB, logger *slog.Logger) *AuditRecordRepository {
	return &AuditRecordRepository{db: db, logger: logger}
}

// InsertAuditRecord relies on the workflow_id primary key for write-once semantics.
func (r *AuditRecordRepository) InsertAuditRecord(ctx context.Context, record models.AuditRecord) error {
	var runError sql.NullString

	if record.Error != nil {
		encoded, err := json.Marshal(record.Error)
		if err != nil {
			return fmt.Errorf("failed to marshal run error: %w", err)
		}

		runError = sql.NullString{String: string(encoded), Valid: true}
	}

	query := `
		INSERT INTO audit_records (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.WorkflowID,
		record.Target.ID,
		record.Target.URL,
		string(record.Target.Type),
		record.StartedAt.UTC(),
		record.CompletedAt.UTC(),
		record.Success,
		runError,
		record.ChangesCount,
		record.RetryCount,
		string(record.FinalStep),
		record.Duration.Milliseconds(),
		record.ContentLength,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewAuditError("InsertAuditRecord", record.WorkflowID, persistence.ErrAuditRecordExists)
		}

		return persistence.NewAuditError("InsertAuditRecord", record.WorkflowID, err)
	}

	return nil
}

func (r *AuditRecordRepository) AuditRecords(ctx context.Context, targetURL string, limit int) ([]models.AuditRecord, error) {
	query := "SELECT " + auditColumns + " FROM audit_records WHERE target_url = $1 ORDER BY started_at DESC, workflow_id"
	args := []any{targetURL}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	records := make([]models.AuditRecord, 0)

	for rows.Next() {
		record, err := scanAuditRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}

		records = append(records, *record)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}

	return records, nil
}

func (r *AuditRecordRepository) AuditRecordByWorkflowID(ctx context.Context, workflowID string) (*models.AuditRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+auditColumns+" FROM audit_records WHERE workflow_id = $1", workflowID)

	record, err := scanAuditRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewAuditError("AuditRecordByWorkflowID", workflowID, persistence.ErrAuditRecordNotFound)
		}

		return nil, fmt.Errorf("failed to scan audit record: %w", err)
	}

	return record, nil
}

func scanAuditRecord(s scanner) (*models.AuditRecord, error) {
	var (
		record     models.AuditRecord
		targetType string
		runError   []byte
		finalStep  string
		durationMS int64
	)

	err := s.Scan(
		&record.WorkflowID,
		&record.Target.ID,
		&record.Target.URL,
		&targetType,
		&record.StartedAt,
		&record.CompletedAt,
		&record.Success,
		&runError,
		&record.ChangesCount,
		&record.RetryCount,
		&finalStep,
		&durationMS,
		&record.ContentLength,
	)
	if err != nil {
		return nil, err
	}

	if len(runError) > 0 {
		record.Error = &models.RunError{}
		if err := json.Unmarshal(runError, record.Error); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run error: %w", err)
		}
	}

	record.Target.Type = models.TargetType(targetType)
	record.FinalStep = models.Step(finalStep)
	record.Duration = time.Duration(durationMS) * time.Millisecond
	record.StartedAt = record.StartedAt.UTC()
	record.CompletedAt = record.CompletedAt.UTC()

	return &record, nil
}
