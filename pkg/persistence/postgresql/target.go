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
	"github.com/google/uuid"
)

const targetColumns = `
	id
  , url
  , name
  , target_type
  , frequency_seconds
  , active
  , recipients
  , last_checked
  , last_content
  , next_check_at
  , created_at
  , updated_at
`

// TargetRepository handles target-related database operations.
type TargetRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewTargetRepository(db *sql.DB, logger *slog.Logger) *TargetRepository {
	return &TargetRepository{db: db, logger: logger}
}

func (r *TargetRepository) Targets(ctx context.Context) ([]*models.Target, error) {
	return r.query(ctx, "SELECT "+targetColumns+" FROM targets ORDER BY created_at, id")
}

func (r *TargetRepository) TargetByID(ctx context.Context, id string) (*models.Target, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, persistence.NewTargetError("TargetByID", id, persistence.ErrTargetNotFound)
	}

	row := r.db.QueryRowContext(ctx, "SELECT "+targetColumns+" FROM targets WHERE id = $1", id)

	return r.scanOne("TargetByID", id, row)
}

func (r *TargetRepository) TargetByURL(ctx context.Context, url string) (*models.Target, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+targetColumns+" FROM targets WHERE url = $1", url)

	return r.scanOne("TargetByURL", url, row)
}

// SaveTarget upserts by id. The engine-owned columns are only written on insert.
func (r *TargetRepository) SaveTarget(ctx context.Context, target *models.Target) error {
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

	recipients, err := json.Marshal(nonNil(target.Recipients))
	if err != nil {
		return fmt.Errorf("failed to marshal recipients: %w", err)
	}

	query := `
		INSERT INTO targets (` + targetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			url = EXCLUDED.url,
			name = EXCLUDED.name,
			target_type = EXCLUDED.target_type,
			frequency_seconds = EXCLUDED.frequency_seconds,
			active = EXCLUDED.active,
			recipients = EXCLUDED.recipients,
			updated_at = EXCLUDED.updated_at
		RETURNING last_checked, last_content, next_check_at
	`

	var lastChecked, nextCheckAt sql.NullTime

	err = r.db.QueryRowContext(ctx, query,
		target.ID,
		target.URL,
		target.Name,
		string(target.Type),
		int64(target.Frequency/time.Second),
		target.Active,
		recipients,
		target.LastChecked,
		target.LastContent,
		target.NextCheckAt,
		target.CreatedAt,
		target.UpdatedAt,
	).Scan(&lastChecked, &target.LastContent, &nextCheckAt)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewTargetError("SaveTarget", target.URL, persistence.ErrTargetAlreadyExists)
		}

		return fmt.Errorf("failed to save target: %w", err)
	}

	target.LastChecked = nullTime(lastChecked)
	target.NextCheckAt = nullTime(nextCheckAt)

	return nil
}

func (r *TargetRepository) DeleteTarget(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return persistence.NewTargetError("DeleteTarget", id, persistence.ErrTargetNotFound)
	}

	result, err := r.db.ExecContext(ctx, "DELETE FROM targets WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete target: %w", err)
	}

	return r.expectOne("DeleteTarget", id, result)
}

func (r *TargetRepository) DueTargets(ctx context.Context, now time.Time) ([]*models.Target, error) {
	return r.query(ctx, `
		SELECT `+targetColumns+`
		FROM targets
		WHERE active AND (next_check_at IS NULL OR next_check_at <= $1)
		ORDER BY created_at, id
	`, now.UTC())
}

func (r *TargetRepository) ScheduleNext(ctx context.Context, url string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE targets SET next_check_at = $2, updated_at = $3 WHERE url = $1",
		url, at.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return persistence.NewTargetError("ScheduleNext", url, err)
	}

	return r.expectOne("ScheduleNext", url, result)
}

func (r *TargetRepository) GetLastContent(ctx context.Context, url string) (string, error) {
	var content string

	err := r.db.QueryRowContext(ctx, "SELECT last_content FROM targets WHERE url = $1", url).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", persistence.NewTargetError("GetLastContent", url, persistence.ErrTargetNotFound)
		}

		return "", persistence.NewTargetError("GetLastContent", url, err)
	}

	return content, nil
}

func (r *TargetRepository) SetLastContent(ctx context.Context, url, content string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE targets SET last_content = $2, last_checked = $3, updated_at = $4 WHERE url = $1",
		url, content, at.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return persistence.NewTargetError("SetLastContent", url, err)
	}

	return r.expectOne("SetLastContent", url, result)
}

func (r *TargetRepository) expectOne(op, key string, result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewTargetError(op, key, err)
	}

	if affected == 0 {
		return persistence.NewTargetError(op, key, persistence.ErrTargetNotFound)
	}

	return nil
}

func (r *TargetRepository) query(ctx context.Context, query string, args ...any) ([]*models.Target, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	targets := make([]*models.Target, 0)

	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}

		targets = append(targets, target)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating targets: %w", err)
	}

	return targets, nil
}

func (r *TargetRepository) scanOne(op, key string, row *sql.Row) (*models.Target, error) {
	target, err := scanTarget(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewTargetError(op, key, persistence.ErrTargetNotFound)
		}

		return nil, fmt.Errorf("failed to scan target: %w", err)
	}

	return target, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTarget(s scanner) (*models.Target, error) {
	var (
		target      models.Target
		targetType  string
		frequency   int64
		recipients  []byte
		lastChecked sql.NullTime
		nextCheckAt sql.NullTime
	)

	err := s.Scan(
		&target.ID,
		&target.URL,
		&target.Name,
		&targetType,
		&frequency,
		&target.Active,
		&recipients,
		&lastChecked,
		&target.LastContent,
		&nextCheckAt,
		&target.CreatedAt,
		&target.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	target.Type = models.TargetType(targetType)
	target.Frequency = time.Duration(frequency) * time.Second

	if len(recipients) > 0 {
		if err := json.Unmarshal(recipients, &target.Recipients); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recipients: %w", err)
		}
	}

	target.LastChecked = nullTime(lastChecked)
	target.NextCheckAt = nullTime(nextCheckAt)

	target.CreatedAt = target.CreatedAt.UTC()
	target.UpdatedAt = target.UpdatedAt.UTC()

	return &target, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}

	v := t.Time.UTC()

	return &v
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}

	return values
}
