package notify

import (
	"context"
	"log/slog"

	"github.com/dukex/changewatch/pkg/models"
)

// LogSink writes each change as a structured log line.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

func NewLogSink(logger *slog.Logger, level slog.Level) *LogSink {
	return &LogSink{logger: logger.With("module", "notify.log"), level: level}
}

func (s *LogSink) Name() string {
	return "log"
}

func (s *LogSink) Notify(ctx context.Context, entry models.ChangeEntry, recipient string) error {
	s.logger.Log(ctx, s.level, "change detected",
		"recipient", recipient,
		"workflow_id", entry.WorkflowID,
		"target_url", entry.Target.URL,
		"target_type", entry.Target.Type,
		"detected_at", entry.DetectedAt,
		"summary", entry.Summary,
	)

	return nil
}
