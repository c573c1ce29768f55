package fetcher_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/changewatch/pkg/fetcher"
	"github.com/dukex/changewatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_Fetch_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("  Page A  \n"))
	}))
	defer server.Close()

	f := fetcher.NewHTTPFetcher(slog.Default(), 5*time.Second)

	content, err := f.Fetch(context.Background(), models.Target{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "Page A", content)
}

func TestHTTPFetcher_Fetch_StatusKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		kind   fetcher.Kind
	}{
		{"not found", http.StatusNotFound, fetcher.KindNotFound},
		{"forbidden", http.StatusForbidden, fetcher.KindForbidden},
		{"unauthorized", http.StatusUnauthorized, fetcher.KindForbidden},
		{"rate limited", http.StatusTooManyRequests, fetcher.KindRateLimited},
		{"server error", http.StatusBadGateway, fetcher.KindServerError},
		{"gateway timeout", http.StatusGatewayTimeout, fetcher.KindTimeout},
		{"bad request", http.StatusBadRequest, fetcher.KindMalformedTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			f := fetcher.NewHTTPFetcher(slog.Default(), 5*time.Second)

			_, err := f.Fetch(context.Background(), models.Target{URL: server.URL})
			require.Error(t, err)

			var fetchErr *fetcher.FetchError
			require.True(t, errors.As(err, &fetchErr))
			assert.Equal(t, tt.kind, fetchErr.Kind)
			assert.Equal(t, tt.status, fetchErr.StatusCode)
		})
	}
}

func TestHTTPFetcher_Fetch_EmptyBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("   \n\t"))
	}))
	defer server.Close()

	f := fetcher.NewHTTPFetcher(slog.Default(), 5*time.Second)

	_, err := f.Fetch(context.Background(), models.Target{URL: server.URL})

	var fetchErr *fetcher.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, fetcher.KindEmptyContent, fetchErr.Kind)
	assert.True(t, fetchErr.Kind.Fatal())
}

func TestHTTPFetcher_Fetch_MalformedURL(t *testing.T) {
	t.Parallel()

	f := fetcher.NewHTTPFetcher(slog.Default(), time.Second)

	for _, raw := range []string{"not a url", "ftp://example.com/file", "/relative/path"} {
		_, err := f.Fetch(context.Background(), models.Target{URL: raw})

		var fetchErr *fetcher.FetchError
		require.True(t, errors.As(err, &fetchErr), raw)
		assert.Equal(t, fetcher.KindMalformedTarget, fetchErr.Kind, raw)
	}
}

func TestHTTPFetcher_Fetch_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte("late"))
	}))
	defer server.Close()
	defer close(release)

	f := fetcher.NewHTTPFetcher(slog.Default(), 50*time.Millisecond)

	_, err := f.Fetch(context.Background(), models.Target{URL: server.URL})

	var fetchErr *fetcher.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, fetcher.KindTimeout, fetchErr.Kind)
}

func TestHTTPFetcher_Fetch_MaxBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer server.Close()

	f := fetcher.NewHTTPFetcher(slog.Default(), time.Second, fetcher.WithMaxBody(4))

	content, err := f.Fetch(context.Background(), models.Target{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "0123", content)
}
