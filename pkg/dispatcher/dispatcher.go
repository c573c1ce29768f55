// Package dispatcher starts exactly one engine run per due target, bounded by a
// worker pool and serialized per target by a lease.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/changewatch/pkg/eventbus"
	"github.com/dukex/changewatch/pkg/events"
	"github.com/dukex/changewatch/pkg/models"
	"github.com/dukex/changewatch/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

var (
	ErrTargetBusy     = errors.New("target already has a run in flight")
	ErrTargetInactive = errors.New("target is inactive")
)

// Runner executes one workflow run. *engine.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, target models.Target, previous string) (*models.WorkflowRun, error)
}

type Config struct {
	Workers      int           `validate:"gte=1"`
	QueueSize    int           `validate:"gte=1"`
	PollSchedule string        `validate:"required"`
	RetryDelay   time.Duration `validate:"gt=0"`
	LeaseTTL     time.Duration `validate:"gt=0"`
}

func DefaultConfig() Config {
	return Config{
		Workers:      4,
		QueueSize:    64,
		PollSchedule: "@every 1m",
		RetryDelay:   time.Minute,
		LeaseTTL:     10 * time.Minute,
	}
}

type Dispatcher struct {
	config  Config
	targets persistence.TargetRepository
	runner  Runner
	locker  Locker
	events  eventbus.EventPublisher
	logger  *slog.Logger
	now     func() time.Time

	cron     *cron.Cron
	jobs     chan string
	wg       sync.WaitGroup
	stopOnce sync.Once

	mu      sync.Mutex
	pending map[string]struct{}
	stopped bool
}

// New creates a Dispatcher. publisher may be nil.
func New(
	config Config,
	targets persistence.TargetRepository,
	runner Runner,
	locker Locker,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) (*Dispatcher, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid dispatcher config: %w", err)
	}

	if _, err := cron.ParseStandard(config.PollSchedule); err != nil {
		return nil, fmt.Errorf("invalid poll schedule %q: %w", config.PollSchedule, err)
	}

	if publisher == nil {
		publisher = eventbus.Discard
	}

	return &Dispatcher{
		config:  config,
		targets: targets,
		runner:  runner,
		locker:  locker,
		events:  publisher,
		logger:  logger.With("module", "dispatcher"),
		now:     func() time.Time { return time.Now().UTC() },
		jobs:    make(chan string, config.QueueSize),
		pending: make(map[string]struct{}),
	}, nil
}

// Start launches the workers and the poller. Stop must be called to release them.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.startWorkers(ctx, d.config.Workers)

	d.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := d.cron.AddFunc(d.config.PollSchedule, func() {
		if _, err := d.Poll(ctx); err != nil {
			d.logger.ErrorContext(ctx, "poll failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule poller: %w", err)
	}

	d.cron.Start()
	d.logger.InfoContext(ctx, "dispatcher started",
		"workers", d.config.Workers, "poll_schedule", d.config.PollSchedule)

	return nil
}

// Stop halts the poller, lets queued runs drain and waits for the workers.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.stopOnce.Do(func() {
		if d.cron != nil {
			<-d.cron.Stop().Done()
		}

		d.mu.Lock()
		d.stopped = true
		close(d.jobs)
		d.mu.Unlock()

		d.wg.Wait()
		d.logger.InfoContext(ctx, "dispatcher stopped")
	})
}

func (d *Dispatcher) startWorkers(ctx context.Context, count int) {
	d.wg.Add(count)

	for range count {
		go func() {
			defer d.wg.Done()

			for url := range d.jobs {
				d.process(ctx, url)
			}
		}()
	}
}

// Poll submits every target that is due now and returns how many were queued.
func (d *Dispatcher) Poll(ctx context.Context) (int, error) {
	due, err := d.targets.DueTargets(ctx, d.now())
	if err != nil {
		return 0, fmt.Errorf("failed to load due targets: %w", err)
	}

	return d.submitAll(ctx, due), nil
}

// QueueAll submits every active target regardless of its next check time.
func (d *Dispatcher) QueueAll(ctx context.Context) (int, error) {
	all, err := d.targets.Targets(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load targets: %w", err)
	}

	active := make([]*models.Target, 0, len(all))

	for _, target := range all {
		if target.Active {
			active = append(active, target)
		}
	}

	return d.submitAll(ctx, active), nil
}

func (d *Dispatcher) submitAll(ctx context.Context, targets []*models.Target) int {
	queued := 0

	for _, target := range targets {
		if d.Submit(target.URL) {
			queued++
		}
	}

	if len(targets) > 0 {
		d.logger.DebugContext(ctx, "targets submitted", "due", len(targets), "queued", queued)
	}

	return queued
}

// Submit queues a run for url. It returns false when url is already queued or
// running in this process, the queue is full, or the dispatcher is stopped.
func (d *Dispatcher) Submit(url string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return false
	}

	if _, queued := d.pending[url]; queued {
		return false
	}

	select {
	case d.jobs <- url:
		d.pending[url] = struct{}{}

		return true
	default:
		d.logger.Warn("job queue full, skipping target", "target_url", url)

		return false
	}
}

// HandleTargetDue is the event bus handler for target.due reports.
func (d *Dispatcher) HandleTargetDue(ctx context.Context, event any) error {
	due, ok := event.(*events.TargetDue)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	if !d.Submit(due.TargetURL) {
		d.logger.DebugContext(ctx, "due report not queued", "target_url", due.TargetURL)
	}

	return nil
}

func (d *Dispatcher) process(ctx context.Context, url string) {
	defer func() {
		d.mu.Lock()
		delete(d.pending, url)
		d.mu.Unlock()
	}()

	_, err := d.Dispatch(ctx, url)

	switch {
	case err == nil:
	case errors.Is(err, ErrTargetBusy), errors.Is(err, ErrTargetInactive):
		d.logger.DebugContext(ctx, "run skipped", "target_url", url, "reason", err)
	case persistence.IsTargetNotFound(err):
		d.logger.WarnContext(ctx, "target disappeared before its run", "target_url", url)
	default:
		d.logger.ErrorContext(ctx, "dispatch failed", "target_url", url, "error", err)
	}
}

// Dispatch runs url now under its lease and schedules the next check. A held
// lease yields ErrTargetBusy without running.
func (d *Dispatcher) Dispatch(ctx context.Context, url string) (*models.WorkflowRun, error) {
	lease, acquired, err := d.locker.Acquire(ctx, url, d.config.LeaseTTL)
	if err != nil {
		return nil, err
	}

	if !acquired {
		return nil, ErrTargetBusy
	}

	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			d.logger.WarnContext(ctx, "failed to release lease", "target_url", url, "error", err)
		}
	}()

	target, err := d.targets.TargetByURL(ctx, url)
	if err != nil {
		return nil, err
	}

	if !target.Active {
		return nil, ErrTargetInactive
	}

	previous, err := d.targets.GetLastContent(ctx, url)
	if err != nil {
		return nil, err
	}

	run, runErr := d.runner.Run(ctx, *target, previous)

	next := d.now().Add(target.Frequency)

	if runErr != nil {
		next = d.now().Add(min(d.config.RetryDelay, target.Frequency))
		d.reportFailure(ctx, run, url, runErr, next)
	}

	if err := d.targets.ScheduleNext(context.WithoutCancel(ctx), url, next); err != nil {
		return run, errors.Join(runErr, fmt.Errorf("failed to schedule next check: %w", err))
	}

	return run, runErr
}

func (d *Dispatcher) reportFailure(ctx context.Context, run *models.WorkflowRun, url string, runErr error, retryAt time.Time) {
	workflowID := ""
	if run != nil {
		workflowID = run.WorkflowID
	}

	d.logger.ErrorContext(ctx, "run failed to persist", "target_url", url, "workflow_id", workflowID, "error", runErr, "retry_at", retryAt)

	event := events.DispatchFailed{
		BaseEvent: events.NewBaseEvent(events.DispatchFailedEvent, workflowID),
		TargetURL: url,
		Error:     runErr.Error(),
		RetryAt:   retryAt,
	}

	if err := d.events.Publish(ctx, url, event); err != nil {
		d.logger.WarnContext(ctx, "failed to publish dispatch failure", "target_url", url, "error", err)
	}
}
