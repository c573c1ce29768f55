package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dukex/changewatch/pkg/eventbus"
	"github.com/dukex/changewatch/pkg/events"
	"github.com/dukex/changewatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry() models.ChangeEntry {
	return models.ChangeEntry{
		ID:            "entry-1",
		WorkflowID:    "wf-1",
		Target:        models.TargetRef{URL: "https://example.com/team", Type: models.TargetTypeCompany},
		BeforeContent: "Team: Alice",
		AfterContent:  "Team: Alice, Bob",
		Summary:       "Bob joined the team",
		Method:        "classifier",
		DetectedAt:    time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
	}
}

type stubSink struct {
	name string
	err  error

	mu    sync.Mutex
	calls []string
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Notify(_ context.Context, _ models.ChangeEntry, recipient string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, recipient)

	return s.err
}

func TestMulti_ContinuesAfterFailure(t *testing.T) {
	boom := errors.New("smtp down")
	failing := &stubSink{name: "failing", err: boom}
	ok := &stubSink{name: "ok"}

	err := Multi{failing, ok}.Notify(context.Background(), testEntry(), "a@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var sinkErr *SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, "failing", sinkErr.Sink)
	assert.Equal(t, "a@example.com", sinkErr.Recipient)

	assert.Equal(t, []string{"a@example.com"}, failing.calls)
	assert.Equal(t, []string{"a@example.com"}, ok.calls)
}

func TestMulti_NoErrors(t *testing.T) {
	assert.NoError(t, Multi{&stubSink{name: "a"}, &stubSink{name: "b"}}.Notify(context.Background(), testEntry(), ""))
	assert.NoError(t, Multi{}.Notify(context.Background(), testEntry(), ""))
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)), slog.LevelInfo)

	require.NoError(t, sink.Notify(context.Background(), testEntry(), "a@example.com"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "change detected", line["msg"])
	assert.Equal(t, "a@example.com", line["recipient"])
	assert.Equal(t, "https://example.com/team", line["target_url"])
	assert.Equal(t, "Bob joined the team", line["summary"])
}

func TestWebhookSink(t *testing.T) {
	t.Run("posts payload", func(t *testing.T) {
		var got WebhookPayload
		var auth string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			auth = r.Header.Get("Authorization")
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		sink := NewWebhookSink(server.Client(), server.URL, http.Header{"Authorization": {"Bearer abc"}})
		require.NoError(t, sink.Notify(context.Background(), testEntry(), "a@example.com"))

		assert.Equal(t, "Bearer abc", auth)
		assert.Equal(t, "entry-1", got.EntryID)
		assert.Equal(t, "wf-1", got.WorkflowID)
		assert.Equal(t, "https://example.com/team", got.TargetURL)
		assert.Equal(t, models.TargetTypeCompany, got.TargetType)
		assert.Equal(t, "a@example.com", got.Recipient)
	})

	t.Run("non 2xx is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		err := NewWebhookSink(server.Client(), server.URL, nil).Notify(context.Background(), testEntry(), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})
}

type recordingPublisher struct {
	keys   []string
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, key string, event eventbus.Event) error {
	p.keys = append(p.keys, key)
	p.events = append(p.events, event)

	return nil
}

func TestEventBusSink(t *testing.T) {
	pub := &recordingPublisher{}

	require.NoError(t, NewEventBusSink(pub).Notify(context.Background(), testEntry(), "a@example.com"))
	require.Len(t, pub.events, 1)

	event, ok := pub.events[0].(events.ChangeDetected)
	require.True(t, ok)
	assert.Equal(t, "wf-1", pub.keys[0])
	assert.Equal(t, "wf-1", event.WorkflowID)
	assert.Equal(t, "entry-1", event.Entry.ID)
	assert.Equal(t, "a@example.com", event.Recipient)
}
