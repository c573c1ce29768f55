package dispatcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/changewatch/pkg/engine"
	"github.com/dukex/changewatch/pkg/eventbus"
	"github.com/dukex/changewatch/pkg/events"
	"github.com/dukex/changewatch/pkg/models"
	"github.com/dukex/changewatch/pkg/persistence"
	"github.com/dukex/changewatch/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type call struct {
	url      string
	previous string
}

type fakeRunner struct {
	mu       sync.Mutex
	calls    []call
	err      error
	gate     chan struct{}
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (r *fakeRunner) Run(_ context.Context, target models.Target, previous string) (*models.WorkflowRun, error) {
	current := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)

	for {
		peak := r.peak.Load()
		if current <= peak || r.peak.CompareAndSwap(peak, current) {
			break
		}
	}

	if r.gate != nil {
		<-r.gate
	}

	r.mu.Lock()
	r.calls = append(r.calls, call{url: target.URL, previous: previous})
	r.mu.Unlock()

	return &models.WorkflowRun{WorkflowID: "wf-" + target.URL, Target: target, Step: models.StepEnd}, r.err
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.calls)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTargets(t *testing.T) persistence.TargetRepository {
	t.Helper()

	p, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	return p.TargetRepository()
}

func addTarget(t *testing.T, repo persistence.TargetRepository, url string, active bool, next *time.Time) {
	t.Helper()

	require.NoError(t, repo.SaveTarget(context.Background(), &models.Target{
		URL:         url,
		Type:        models.TargetTypeGenericSite,
		Frequency:   time.Hour,
		Active:      active,
		NextCheckAt: next,
	}))
}

func newDispatcher(t *testing.T, config Config, repo persistence.TargetRepository, runner Runner, locker Locker, publisher eventbus.EventPublisher) *Dispatcher {
	t.Helper()

	d, err := New(config, repo, runner, locker, publisher, discardLogger())
	require.NoError(t, err)

	d.now = func() time.Time { return fixedNow }

	return d
}

func TestNew_InvalidConfig(t *testing.T) {
	repo := newTargets(t)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"no queue", func(c *Config) { c.QueueSize = 0 }},
		{"bad schedule", func(c *Config) { c.PollSchedule = "every now and then" }},
		{"no retry delay", func(c *Config) { c.RetryDelay = 0 }},
		{"no lease ttl", func(c *Config) { c.LeaseTTL = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)

			_, err := New(config, repo, &fakeRunner{}, NewLocalLocker(), nil, discardLogger())
			assert.Error(t, err)
		})
	}
}

func TestDispatch_SchedulesNextCheck(t *testing.T) {
	ctx := context.Background()
	repo := newTargets(t)
	addTarget(t, repo, "https://example.com", true, nil)
	require.NoError(t, repo.SetLastContent(ctx, "https://example.com", "old text", fixedNow.Add(-time.Hour)))

	runner := &fakeRunner{}
	d := newDispatcher(t, DefaultConfig(), repo, runner, NewLocalLocker(), nil)

	run, err := d.Dispatch(ctx, "https://example.com")
	require.NoError(t, err)
	require.NotNil(t, run)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "old text", runner.calls[0].previous)

	target, err := repo.TargetByURL(ctx, "https://example.com")
	require.NoError(t, err)
	require.NotNil(t, target.NextCheckAt)
	assert.True(t, target.NextCheckAt.Equal(fixedNow.Add(time.Hour)))
}

func TestDispatch_BusyTarget(t *testing.T) {
	ctx := context.Background()
	repo := newTargets(t)
	addTarget(t, repo, "https://example.com", true, nil)

	locker := NewLocalLocker()
	lease, ok, err := locker.Acquire(ctx, "https://example.com", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	runner := &fakeRunner{}
	d := newDispatcher(t, DefaultConfig(), repo, runner, locker, nil)

	_, err = d.Dispatch(ctx, "https://example.com")
	assert.ErrorIs(t, err, ErrTargetBusy)
	assert.Zero(t, runner.callCount())

	require.NoError(t, lease.Release(ctx))

	_, err = d.Dispatch(ctx, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, runner.callCount())
}

func TestDispatch_ReleasesLease(t *testing.T) {
	ctx := context.Background()
	repo := newTargets(t)
	addTarget(t, repo, "https://example.com", true, nil)

	locker := NewLocalLocker()
	d := newDispatcher(t, DefaultConfig(), repo, &fakeRunner{err: errors.New("boom")}, locker, nil)

	_, err := d.Dispatch(ctx, "https://example.com")
	require.Error(t, err)

	lease, ok, err := locker.Acquire(ctx, "https://example.com", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lease must be released after a failed run")
	require.NoError(t, lease.Release(ctx))
}

func TestDispatch_InactiveAndMissing(t *testing.T) {
	ctx := context.Background()
	repo := newTargets(t)
	addTarget(t, repo, "https://paused.example.com", false, nil)

	runner := &fakeRunner{}
	d := newDispatcher(t, DefaultConfig(), repo, runner, NewLocalLocker(), nil)

	_, err := d.Dispatch(ctx, "https://paused.example.com")
	assert.ErrorIs(t, err, ErrTargetInactive)

	_, err = d.Dispatch(ctx, "https://missing.example.com")
	assert.True(t, persistence.IsTargetNotFound(err))

	assert.Zero(t, runner.callCount())
}

func TestDispatch_PersistenceFailureRetriesSooner(t *testing.T) {
	ctx := context.Background()
	repo := newTargets(t)
	addTarget(t, repo, "https://example.com", true, nil)

	runErr := &engine.PersistenceError{
		Op:         "set_last_content",
		TargetURL:  "https://example.com",
		WorkflowID: "wf-https://example.com",
		Err:        errors.New("disk full"),
	}
	publisher := &recordingPublisher{}

	config := DefaultConfig()
	config.RetryDelay = 5 * time.Minute

	d := newDispatcher(t, config, repo, &fakeRunner{err: runErr}, NewLocalLocker(), publisher)

	_, err := d.Dispatch(ctx, "https://example.com")
	require.Error(t, err)
	assert.True(t, engine.IsPersistenceError(err))

	target, err := repo.TargetByURL(ctx, "https://example.com")
	require.NoError(t, err)
	require.NotNil(t, target.NextCheckAt)
	assert.True(t, target.NextCheckAt.Equal(fixedNow.Add(5*time.Minute)))

	require.Len(t, publisher.events, 1)
	failed, ok := publisher.events[0].(events.DispatchFailed)
	require.True(t, ok)
	assert.Equal(t, "https://example.com", failed.TargetURL)
	assert.Equal(t, "wf-https://example.com", failed.WorkflowID)
	assert.True(t, failed.RetryAt.Equal(fixedNow.Add(5*time.Minute)))
}

func TestDispatch_RetryDelayCappedByFrequency(t *testing.T) {
	ctx := context.Background()
	repo := newTargets(t)
	require.NoError(t, repo.SaveTarget(ctx, &models.Target{
		URL:       "https://fast.example.com",
		Type:      models.TargetTypeCompany,
		Frequency: 2 * time.Minute,
		Active:    true,
	}))

	config := DefaultConfig()
	config.RetryDelay = time.Hour

	d := newDispatcher(t, config, repo, &fakeRunner{err: errors.New("boom")}, NewLocalLocker(), nil)

	_, err := d.Dispatch(ctx, "https://fast.example.com")
	require.Error(t, err)

	target, err := repo.TargetByURL(ctx, "https://fast.example.com")
	require.NoError(t, err)
	assert.True(t, target.NextCheckAt.Equal(fixedNow.Add(2*time.Minute)))
}

func TestSubmit_Dedupes(t *testing.T) {
	repo := newTargets(t)

	config := DefaultConfig()
	config.QueueSize = 2

	d := newDispatcher(t, config, repo, &fakeRunner{}, NewLocalLocker(), nil)

	assert.True(t, d.Submit("https://a.example.com"))
	assert.False(t, d.Submit("https://a.example.com"), "already queued")
	assert.True(t, d.Submit("https://b.example.com"))
	assert.False(t, d.Submit("https://c.example.com"), "queue full")
}

func TestPoll_SubmitsOnlyDueTargets(t *testing.T) {
	ctx := context.Background()
	repo := newTargets(t)

	past := fixedNow.Add(-time.Minute)
	future := fixedNow.Add(time.Hour)

	addTarget(t, repo, "https://due.example.com", true, &past)
	addTarget(t, repo, "https://new.example.com", true, nil)
	addTarget(t, repo, "https://later.example.com", true, &future)
	addTarget(t, repo, "https://paused.example.com", false, &past)

	d := newDispatcher(t, DefaultConfig(), repo, &fakeRunner{}, NewLocalLocker(), nil)

	queued, err := d.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, queued)

	// resubmitting while the first batch is still queued is a no-op
	queued, err = d.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, queued)
}

func TestQueueAll_SubmitsActiveTargets(t *testing.T) {
	ctx := context.Background()
	repo := newTargets(t)

	future := fixedNow.Add(time.Hour)

	addTarget(t, repo, "https://a.example.com", true, &future)
	addTarget(t, repo, "https://b.example.com", true, nil)
	addTarget(t, repo, "https://paused.example.com", false, nil)

	d := newDispatcher(t, DefaultConfig(), repo, &fakeRunner{}, NewLocalLocker(), nil)

	queued, err := d.QueueAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, queued)
}

func TestStartStop_DrainsQueue(t *testing.T) {
	ctx := context.Background()
	repo := newTargets(t)

	urls := []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"}
	for _, url := range urls {
		addTarget(t, repo, url, true, nil)
	}

	config := DefaultConfig()
	config.PollSchedule = "@every 1h"

	runner := &fakeRunner{}
	d := newDispatcher(t, config, repo, runner, NewLocalLocker(), nil)

	require.NoError(t, d.Start(ctx))

	for _, url := range urls {
		require.True(t, d.Submit(url))
	}

	d.Stop(ctx)
	d.Stop(ctx)

	assert.Equal(t, len(urls), runner.callCount())
	assert.False(t, d.Submit(urls[0]), "stopped dispatcher accepts no work")
}

func TestWorkers_BoundConcurrency(t *testing.T) {
	ctx := context.Background()
	repo := newTargets(t)

	urls := []string{
		"https://a.example.com", "https://b.example.com", "https://c.example.com",
		"https://d.example.com", "https://e.example.com",
	}
	for _, url := range urls {
		addTarget(t, repo, url, true, nil)
	}

	config := DefaultConfig()
	config.Workers = 2
	config.PollSchedule = "@every 1h"

	runner := &fakeRunner{gate: make(chan struct{})}
	d := newDispatcher(t, config, repo, runner, NewLocalLocker(), nil)

	require.NoError(t, d.Start(ctx))

	for _, url := range urls {
		require.True(t, d.Submit(url))
	}

	assert.Eventually(t, func() bool { return runner.inFlight.Load() == 2 }, time.Second, 10*time.Millisecond)

	close(runner.gate)
	d.Stop(ctx)

	assert.Equal(t, len(urls), runner.callCount())
	assert.Equal(t, int32(2), runner.peak.Load())
}

func TestHandleTargetDue(t *testing.T) {
	ctx := context.Background()
	d := newDispatcher(t, DefaultConfig(), newTargets(t), &fakeRunner{}, NewLocalLocker(), nil)

	err := d.HandleTargetDue(ctx, &events.TargetDue{TargetURL: "https://example.com", DueAt: fixedNow})
	require.NoError(t, err)
	assert.False(t, d.Submit("https://example.com"), "due report already queued the target")

	err = d.HandleTargetDue(ctx, &events.RunStarted{})
	assert.Error(t, err)
}
