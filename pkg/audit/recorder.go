// Package audit writes the write-once outcome record of each workflow run.
package audit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukex/changewatch/pkg/eventbus"
	"github.com/dukex/changewatch/pkg/events"
	"github.com/dukex/changewatch/pkg/models"
	"github.com/dukex/changewatch/pkg/persistence"
)

var ErrRunNotTerminal = errors.New("run has not reached end")

type Recorder struct {
	repo      persistence.AuditRecordRepository
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

// NewRecorder creates a Recorder. publisher may be nil.
func NewRecorder(repo persistence.AuditRecordRepository, publisher eventbus.EventPublisher, logger *slog.Logger) *Recorder {
	if publisher == nil {
		publisher = eventbus.Discard
	}

	return &Recorder{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With("module", "audit"),
	}
}

// Record inserts the audit record of a terminal run and announces it with a
// run.completed or run.failed event. Insert errors are returned unchanged and
// never retried here.
func (r *Recorder) Record(ctx context.Context, run *models.WorkflowRun) (models.AuditRecord, error) {
	if !run.Step.Terminal() {
		return models.AuditRecord{}, ErrRunNotTerminal
	}

	record := FromRun(run)

	if err := r.repo.InsertAuditRecord(ctx, record); err != nil {
		return record, err
	}

	var event eventbus.Event = events.RunCompleted{
		BaseEvent: events.NewBaseEvent(events.RunCompletedEvent, run.WorkflowID),
		Record:    record,
	}

	if !record.Success {
		event = events.RunFailed{
			BaseEvent: events.NewBaseEvent(events.RunFailedEvent, run.WorkflowID),
			Record:    record,
		}
	}

	if err := r.publisher.Publish(ctx, run.WorkflowID, event); err != nil {
		r.logger.WarnContext(ctx, "failed to publish audit event", "workflow_id", run.WorkflowID, "error", err)
	}

	return record, nil
}

// FromRun builds the audit record for a terminal run.
func FromRun(run *models.WorkflowRun) models.AuditRecord {
	return models.AuditRecord{
		WorkflowID:    run.WorkflowID,
		Target:        run.Target.Identity(),
		StartedAt:     run.StartedAt,
		CompletedAt:   run.CompletedAt,
		Success:       run.Succeeded(),
		Error:         run.Error,
		ChangesCount:  len(run.ChangeEntries),
		RetryCount:    run.RetryCount,
		FinalStep:     run.FinalStep,
		Duration:      run.CompletedAt.Sub(run.StartedAt),
		ContentLength: len(run.CurrentContent),
	}
}
