// Package engine drives one workflow run per target through fetch, detect,
// notify and store, with bounded retries and a single terminal audit record.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/changewatch/pkg/detector"
	"github.com/dukex/changewatch/pkg/eventbus"
	"github.com/dukex/changewatch/pkg/events"
	"github.com/dukex/changewatch/pkg/fetcher"
	"github.com/dukex/changewatch/pkg/models"
	"github.com/dukex/changewatch/pkg/notify"
	"github.com/dukex/changewatch/pkg/otelhelper"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Detector decides whether current differs meaningfully from previous.
type Detector interface {
	Detect(ctx context.Context, previous, current string, targetType models.TargetType) (detector.Outcome, error)
}

// ContentStore holds the last observed content of each target.
type ContentStore interface {
	SetLastContent(ctx context.Context, url, content string, at time.Time) error
}

type ChangeStore interface {
	InsertChangeEntry(ctx context.Context, entry models.ChangeEntry) error
}

// Recorder writes the terminal audit record of a run.
type Recorder interface {
	Record(ctx context.Context, run *models.WorkflowRun) (models.AuditRecord, error)
}

// Dependencies are the collaborators of an Engine. Events, Tracer, Now and
// Sleep are optional.
type Dependencies struct {
	Fetcher  fetcher.Fetcher
	Detector Detector
	Notifier notify.Sink
	Content  ContentStore
	Changes  ChangeStore
	Recorder Recorder
	Events   eventbus.EventPublisher
	Tracer   trace.Tracer
	Now      func() time.Time
	Sleep    func(ctx context.Context, d time.Duration)
}

// Engine is stateless between runs and safe for concurrent use as long as
// callers never run the same target twice at once.
type Engine struct {
	deps   Dependencies
	config Config
	logger *slog.Logger
}

func New(deps Dependencies, config Config, logger *slog.Logger) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	required := []struct {
		name    string
		missing bool
	}{
		{"fetcher", deps.Fetcher == nil},
		{"detector", deps.Detector == nil},
		{"notifier", deps.Notifier == nil},
		{"content", deps.Content == nil},
		{"changes", deps.Changes == nil},
		{"recorder", deps.Recorder == nil},
	}
	for _, dep := range required {
		if dep.missing {
			return nil, fmt.Errorf("%w: %s", ErrMissingDependency, dep.name)
		}
	}

	if deps.Events == nil {
		deps.Events = eventbus.Discard
	}

	if deps.Tracer == nil {
		deps.Tracer = otelhelper.NoopTracer()
	}

	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}

	if deps.Sleep == nil {
		deps.Sleep = sleep
	}

	return &Engine{
		deps:   deps,
		config: config,
		logger: logger.With("module", "engine"),
	}, nil
}

// Run executes one run for target to completion. Cancelling ctx does not stop
// a started run; every external call is bounded by its own timeout instead.
// The returned run is always terminal. The error, when not nil, is a
// *PersistenceError.
func (e *Engine) Run(ctx context.Context, target models.Target, previous string) (*models.WorkflowRun, error) {
	ctx = context.WithoutCancel(ctx)
	now := e.deps.Now()

	run := &models.WorkflowRun{
		WorkflowID:      uuid.NewString(),
		Target:          target,
		PreviousContent: previous,
		Step:            models.StepStart,
		StartedAt:       now,
		LastUpdated:     now,
	}

	ctx, span := otelhelper.StartSpan(ctx, e.deps.Tracer, "changewatch.run",
		attribute.String(otelhelper.WorkflowIDKey, run.WorkflowID),
		attribute.String(otelhelper.TargetIDKey, target.ID),
		attribute.String(otelhelper.TargetURLKey, target.URL),
		attribute.String(otelhelper.TargetTypeKey, string(target.Type)),
	)
	defer span.End()

	logger := e.logger.With("workflow_id", run.WorkflowID, "target_url", target.URL)
	logger.DebugContext(ctx, "run started", "target_type", target.Type)

	e.publish(ctx, logger, run, events.RunStarted{
		BaseEvent: events.NewBaseEvent(events.RunStartedEvent, run.WorkflowID),
		Target:    target.Identity(),
	})

	storeErr := e.execute(ctx, logger, span, run)

	return run, e.finish(ctx, logger, span, run, storeErr)
}

// execute walks the run from Start to the step before End.
func (e *Engine) execute(ctx context.Context, logger *slog.Logger, span trace.Span, run *models.WorkflowRun) error {
	e.transition(ctx, logger, run, models.StepFetch)

	content, fetchErr := e.fetch(ctx, logger, span, run)
	if fetchErr != nil {
		run.Error = failureFor(fetchErr)
		e.transition(ctx, logger, run, models.StepErrorHandler)

		return nil
	}

	run.CurrentContent = content
	e.transition(ctx, logger, run, models.StepDetect)

	if unchanged(run.PreviousContent, run.CurrentContent) {
		e.transition(ctx, logger, run, models.StepStore)

		return e.store(ctx, logger, run)
	}

	outcome, err := e.deps.Detector.Detect(ctx, run.PreviousContent, run.CurrentContent, run.Target.Type)

	next := routeAfterDetect(outcome, err)
	if next == models.StepErrorHandler {
		run.Error = &models.RunError{Category: models.ErrorCategoryDetection, Message: err.Error()}
		e.transition(ctx, logger, run, models.StepErrorHandler)

		return nil
	}

	if next == models.StepNotify {
		run.ChangeEntries = append(run.ChangeEntries, e.newEntry(run, outcome))
		e.transition(ctx, logger, run, models.StepNotify)
		e.notify(ctx, logger, run)
	}

	e.transition(ctx, logger, run, models.StepStore)

	return e.store(ctx, logger, run)
}

// fetch is the bounded Fetch/RetryHandler loop. It returns the content or the
// failure that ended the loop, leaving run.Step at the last step visited.
func (e *Engine) fetch(ctx context.Context, logger *slog.Logger, span trace.Span, run *models.WorkflowRun) (string, *fetcher.FetchError) {
	var fetchErr *fetcher.FetchError

	for attempt := 1; attempt <= e.config.MaxRetries; attempt++ {
		var content string

		content, fetchErr = e.fetchOnce(ctx, run.Target)

		if fetchErr != nil && !fetchErr.Kind.Fatal() {
			run.RetryCount++
		}

		switch routeAfterFetch(fetchErr, run.RetryCount, e.config.MaxRetries) {
		case models.StepDetect:
			return content, nil
		case models.StepErrorHandler:
			logger.ErrorContext(ctx, "fetch failed",
				"error", fetchErr, "kind", fetchErr.Kind, "retry_count", run.RetryCount)
			otelhelper.SetError(span, fetchErr, attribute.Int(otelhelper.RetryCountKey, run.RetryCount))

			return "", fetchErr
		}

		delay := e.config.Backoff(run.RetryCount)

		logger.WarnContext(ctx, "fetch failed, retrying",
			"error", fetchErr, "kind", fetchErr.Kind, "retry_count", run.RetryCount, "delay", delay)

		e.transition(ctx, logger, run, models.StepRetryHandler)
		e.publish(ctx, logger, run, events.RunRetrying{
			BaseEvent:  events.NewBaseEvent(events.RunRetryingEvent, run.WorkflowID),
			RetryCount: run.RetryCount,
			Delay:      delay,
			ErrorKind:  string(fetchErr.Kind),
		})

		e.deps.Sleep(ctx, delay)

		e.transition(ctx, logger, run, models.StepFetch)
	}

	return "", fetchErr
}

func (e *Engine) fetchOnce(ctx context.Context, target models.Target) (string, *fetcher.FetchError) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.config.FetchTimeout)
	defer cancel()

	content, err := e.deps.Fetcher.Fetch(fetchCtx, target)
	if err != nil {
		return "", fetcher.Classify(target.URL, err)
	}

	if unchanged(content, "") {
		return "", fetcher.NewFetchError(fetcher.KindEmptyContent, target.URL, nil)
	}

	return content, nil
}

func (e *Engine) newEntry(run *models.WorkflowRun, outcome detector.Outcome) models.ChangeEntry {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	return models.ChangeEntry{
		ID:            id.String(),
		WorkflowID:    run.WorkflowID,
		Target:        run.Target.Identity(),
		BeforeContent: run.PreviousContent,
		AfterContent:  run.CurrentContent,
		Summary:       outcome.Summary,
		Method:        string(outcome.Method),
		DetectedAt:    e.deps.Now(),
	}
}

// notify delivers every entry to every recipient. Failures are logged only.
func (e *Engine) notify(ctx context.Context, logger *slog.Logger, run *models.WorkflowRun) {
	recipients := run.Target.Recipients
	if len(recipients) == 0 {
		recipients = []string{""}
	}

	for _, entry := range run.ChangeEntries {
		for _, recipient := range recipients {
			notifyCtx, cancel := context.WithTimeout(ctx, e.config.NotifyTimeout)
			err := e.deps.Notifier.Notify(notifyCtx, entry, recipient)
			cancel()

			if err != nil {
				logger.WarnContext(ctx, "notification failed", "recipient", recipient, "entry_id", entry.ID, "error", err)
			}
		}
	}
}

// store persists change entries before the snapshot so a snapshot never
// advances past an unrecorded change.
func (e *Engine) store(ctx context.Context, logger *slog.Logger, run *models.WorkflowRun) error {
	for _, entry := range run.ChangeEntries {
		if err := e.deps.Changes.InsertChangeEntry(ctx, entry); err != nil {
			return e.storeFailed(ctx, logger, run, "InsertChangeEntry", err)
		}
	}

	if err := e.deps.Content.SetLastContent(ctx, run.Target.URL, run.CurrentContent, e.deps.Now()); err != nil {
		return e.storeFailed(ctx, logger, run, "SetLastContent", err)
	}

	return nil
}

func (e *Engine) storeFailed(ctx context.Context, logger *slog.Logger, run *models.WorkflowRun, op string, err error) error {
	logger.ErrorContext(ctx, "store failed", "op", op, "error", err)

	run.Error = &models.RunError{Category: models.ErrorCategoryPersistence, Kind: op, Message: err.Error()}
	e.transition(ctx, logger, run, models.StepErrorHandler)

	return &PersistenceError{Op: op, TargetURL: run.Target.URL, WorkflowID: run.WorkflowID, Err: err}
}

// finish moves the run to End and writes its audit record exactly once.
func (e *Engine) finish(ctx context.Context, logger *slog.Logger, span trace.Span, run *models.WorkflowRun, storeErr error) error {
	run.FinalStep = run.Step
	e.transition(ctx, logger, run, models.StepEnd)
	run.CompletedAt = e.deps.Now()

	record, err := e.deps.Recorder.Record(ctx, run)
	if err != nil {
		logger.ErrorContext(ctx, "audit record failed", "error", err)
		otelhelper.SetError(span, err)

		recordErr := &PersistenceError{Op: "InsertAuditRecord", TargetURL: run.Target.URL, WorkflowID: run.WorkflowID, Err: err}

		if storeErr != nil {
			return errors.Join(storeErr, recordErr)
		}

		return recordErr
	}

	if storeErr != nil {
		otelhelper.SetError(span, storeErr)

		return storeErr
	}

	logger.InfoContext(ctx, "run finished",
		"success", record.Success,
		"changes_count", record.ChangesCount,
		"retry_count", record.RetryCount,
		"final_step", record.FinalStep,
		"duration", record.Duration,
	)

	return nil
}

func (e *Engine) transition(ctx context.Context, logger *slog.Logger, run *models.WorkflowRun, to models.Step) {
	from := run.Step
	run.Step = to
	run.LastUpdated = e.deps.Now()

	logger.DebugContext(ctx, "step", "from", from, "to", to, "retry_count", run.RetryCount)

	e.publish(ctx, logger, run, events.RunStep{
		BaseEvent:  events.NewBaseEvent(events.RunStepEvent, run.WorkflowID),
		From:       from,
		To:         to,
		RetryCount: run.RetryCount,
	})
}

func (e *Engine) publish(ctx context.Context, logger *slog.Logger, run *models.WorkflowRun, event eventbus.Event) {
	if err := e.deps.Events.Publish(ctx, run.WorkflowID, event); err != nil {
		logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

// sleep waits for d. Run detaches ctx from cancellation, so a backoff always
// runs to completion.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
