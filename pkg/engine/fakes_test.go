package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/changewatch/pkg/audit"
	"github.com/dukex/changewatch/pkg/classifier"
	"github.com/dukex/changewatch/pkg/eventbus"
	"github.com/dukex/changewatch/pkg/fetcher"
	"github.com/dukex/changewatch/pkg/models"
)

var errStore = errors.New("disk full")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// journal records side effects in the order they happen.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = append(j.entries, entry)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	return append([]string(nil), j.entries...)
}

type fetchResult struct {
	content string
	err     error
}

// scriptedFetcher returns its results in order and repeats the last one.
type scriptedFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
}

func fetches(results ...fetchResult) *scriptedFetcher {
	return &scriptedFetcher{results: results}
}

func failWith(kind fetcher.Kind) fetchResult {
	return fetchResult{err: fetcher.NewFetchError(kind, "https://example.com", errors.New(string(kind)))}
}

func (f *scriptedFetcher) Fetch(_ context.Context, _ models.Target) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := f.results[min(f.calls, len(f.results)-1)]
	f.calls++

	return result.content, result.err
}

func (f *scriptedFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

type stubClassifier struct {
	mu      sync.Mutex
	verdict classifier.Verdict
	err     error
	calls   int
}

func (c *stubClassifier) Classify(_ context.Context, _ classifier.Request) (classifier.Verdict, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++

	return c.verdict, c.err
}

func (c *stubClassifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls
}

type recordingSink struct {
	journal *journal
	err     error

	mu         sync.Mutex
	recipients []string
	entries    []models.ChangeEntry
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Notify(_ context.Context, entry models.ChangeEntry, recipient string) error {
	s.mu.Lock()
	s.recipients = append(s.recipients, recipient)
	s.entries = append(s.entries, entry)
	s.mu.Unlock()

	s.journal.add("notify")

	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.recipients)
}

// memoryStore implements ContentStore, ChangeStore and Recorder.
type memoryStore struct {
	journal *journal

	mu            sync.Mutex
	lastContent   map[string]string
	entries       []models.ChangeEntry
	records       []models.AuditRecord
	failContent   error
	failChanges   error
	failRecord    error
	recordedSteps []models.Step
}

func newMemoryStore(j *journal) *memoryStore {
	return &memoryStore{journal: j, lastContent: make(map[string]string)}
}

func (s *memoryStore) SetLastContent(_ context.Context, url, content string, _ time.Time) error {
	s.journal.add("set_last_content")

	if s.failContent != nil {
		return s.failContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastContent[url] = content

	return nil
}

func (s *memoryStore) InsertChangeEntry(_ context.Context, entry models.ChangeEntry) error {
	s.journal.add("insert_change_entry")

	if s.failChanges != nil {
		return s.failChanges
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)

	return nil
}

func (s *memoryStore) Record(_ context.Context, run *models.WorkflowRun) (models.AuditRecord, error) {
	s.journal.add("audit")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.recordedSteps = append(s.recordedSteps, run.Step)

	record := audit.FromRun(run)
	if s.failRecord != nil {
		return record, s.failRecord
	}

	s.records = append(s.records, record)

	return record, nil
}

func (s *memoryStore) content(url string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.lastContent[url]

	return v, ok
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

func (p *recordingPublisher) list() []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]eventbus.Event(nil), p.events...)
}

// fakeClock advances one second per read so every timestamp is distinct.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(time.Second)

	return c.now
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.delays = append(s.delays, d)
}
