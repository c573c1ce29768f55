package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/changewatch/pkg/models"
)

// ChangeEntryRepository handles change entry database operations.
type ChangeEntryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewChangeEntryRepository(db *sql.DB, logger *slog.Logger) *ChangeEntryRepository {
	return &ChangeEntryRepository{db: db, logger: logger}
}

func (r *ChangeEntryRepository) InsertChangeEntry(ctx context.Context, entry models.ChangeEntry) error {
	query := `
		INSERT INTO change_entries (
			id, workflow_id, target_id, target_url, target_type,
			before_content, after_content, summary, method, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.WorkflowID,
		entry.Target.ID,
		entry.Target.URL,
		string(entry.Target.Type),
		entry.BeforeContent,
		entry.AfterContent,
		entry.Summary,
		entry.Method,
		entry.DetectedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert change entry: %w", err)
	}

	return nil
}

func (r *ChangeEntryRepository) ChangeEntries(ctx context.Context, targetURL string, limit int) ([]models.ChangeEntry, error) {
	query := `
		SELECT id, workflow_id, target_id, target_url, target_type,
			before_content, after_content, summary, method, detected_at
		FROM change_entries
		WHERE target_url = $1
		ORDER BY detected_at DESC
	`
	args := []any{targetURL}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query change entries: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	entries := make([]models.ChangeEntry, 0)

	for rows.Next() {
		var (
			entry      models.ChangeEntry
			targetType string
		)

		err := rows.Scan(
			&entry.ID,
			&entry.WorkflowID,
			&entry.Target.ID,
			&entry.Target.URL,
			&targetType,
			&entry.BeforeContent,
			&entry.AfterContent,
			&entry.Summary,
			&entry.Method,
			&entry.DetectedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan change entry: %w", err)
		}

		entry.Target.Type = models.TargetType(targetType)
		entry.DetectedAt = entry.DetectedAt.UTC()
		entries = append(entries, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating change entries: %w", err)
	}

	return entries, nil
}
