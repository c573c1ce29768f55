package cmd

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/dukex/changewatch/pkg/classifier"
	"github.com/dukex/changewatch/pkg/dispatcher"
	"github.com/dukex/changewatch/pkg/eventbus"
	"github.com/dukex/changewatch/pkg/notify"
	"github.com/dukex/changewatch/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParsePersistenceProvider(t *testing.T) {
	tests := map[string]string{
		"file:///var/lib/changewatch":      "file",
		"./data":                           "file",
		"postgres://u:p@localhost/db":      "postgres",
		"postgresql://u:p@localhost/db":    "postgresql",
		"mongodb://localhost:27017/target": "mongodb",
	}

	for url, want := range tests {
		assert.Equal(t, want, parsePersistenceProvider(url), url)
	}
}

func TestNewPersistence_File(t *testing.T) {
	root := filepath.Join(t.TempDir(), "store")

	p, err := NewPersistence(context.Background(), discardLogger(), "file://"+root)
	require.NoError(t, err)
	assert.IsType(t, &file.Persistence{}, p)
	require.NoError(t, p.HealthCheck(context.Background()))
}

func TestNewPersistence_Unsupported(t *testing.T) {
	_, err := NewPersistence(context.Background(), discardLogger(), "mongodb://localhost/x")
	assert.ErrorContains(t, err, "unsupported database url")
}

func TestNewEventBus(t *testing.T) {
	bus, err := NewEventBus("none", "test", "", discardLogger())
	require.NoError(t, err)
	assert.Nil(t, bus)
	assert.Equal(t, eventbus.Discard, Publisher(bus))

	bus, err = NewEventBus("gochannel", "test", "", discardLogger())
	require.NoError(t, err)
	require.NotNil(t, bus)
	t.Cleanup(func() { _ = bus.Close() })

	_, err = NewEventBus("kafka", "test", " , ", discardLogger())
	assert.Error(t, err, "kafka without brokers")

	_, err = NewEventBus("nats", "test", "", discardLogger())
	assert.Error(t, err)
}

func TestNewLocker(t *testing.T) {
	locker, closeFn, err := NewLocker(context.Background(), "local", "")
	require.NoError(t, err)
	assert.IsType(t, &dispatcher.LocalLocker{}, locker)
	assert.NoError(t, closeFn())

	_, _, err = NewLocker(context.Background(), "redis", "not a url")
	assert.Error(t, err)

	_, _, err = NewLocker(context.Background(), "etcd", "")
	assert.Error(t, err)
}

func TestNewClassifier(t *testing.T) {
	c, err := NewClassifier(nil, ClassifierOptions{Provider: "none"})
	require.NoError(t, err)
	assert.IsType(t, classifier.Unavailable{}, c)

	c, err = NewClassifier(nil, ClassifierOptions{Provider: "gemini", APIKey: "key"})
	require.NoError(t, err)
	assert.IsType(t, &classifier.Gemini{}, c)

	_, err = NewClassifier(nil, ClassifierOptions{Provider: "gemini"})
	assert.Error(t, err, "gemini needs a key")

	c, err = NewClassifier(nil, ClassifierOptions{Provider: "openai", URL: "http://localhost:1234"})
	require.NoError(t, err)
	assert.IsType(t, &classifier.OpenAI{}, c)

	_, err = NewClassifier(nil, ClassifierOptions{Provider: "bedrock"})
	assert.Error(t, err)
}

func TestNewNotifier(t *testing.T) {
	bus, err := NewEventBus("gochannel", "test", "", discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })

	sink, err := NewNotifier("log, webhook,eventbus", "http://hooks.example.com", nil, bus, discardLogger())
	require.NoError(t, err)

	multi, ok := sink.(notify.Multi)
	require.True(t, ok)
	require.Len(t, multi, 3)
	assert.Equal(t, "log", multi[0].Name())
	assert.Equal(t, "webhook", multi[1].Name())

	_, err = NewNotifier("webhook", "", nil, nil, discardLogger())
	assert.Error(t, err)

	_, err = NewNotifier("eventbus", "", nil, nil, discardLogger())
	assert.Error(t, err)

	_, err = NewNotifier("", "", nil, nil, discardLogger())
	assert.Error(t, err)

	_, err = NewNotifier("smtp", "", nil, nil, discardLogger())
	assert.Error(t, err)
}
