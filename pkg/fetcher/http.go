package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukex/changewatch/pkg/models"
)

const (
	defaultUserAgent = "Mozilla/5.0 (compatible; changewatch/1.0)"
	defaultMaxBody   = 2 << 20
	maxRedirects     = 5
)

// HTTPFetcher fetches a target over HTTP and returns the response body.
// Content extraction per site type is left to a wrapping Fetcher.
type HTTPFetcher struct {
	client    *http.Client
	logger    *slog.Logger
	userAgent string
	maxBody   int64
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		f.client = client
	}
}

// WithMaxBody caps how many bytes of a response are read.
func WithMaxBody(n int64) HTTPOption {
	return func(f *HTTPFetcher) {
		f.maxBody = n
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// NewHTTPFetcher creates an HTTP fetcher.
func NewHTTPFetcher(logger *slog.Logger, timeout time.Duration, opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}

				return nil
			},
		},
		logger:    logger.With("module", "http_fetcher"),
		userAgent: defaultUserAgent,
		maxBody:   defaultMaxBody,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch performs a GET against the target URL.
func (f *HTTPFetcher) Fetch(ctx context.Context, target models.Target) (string, error) {
	parsed, err := url.Parse(target.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		if err == nil {
			err = errors.New("target URL must be absolute http(s)")
		}

		return "", NewFetchError(KindMalformedTarget, target.URL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", NewFetchError(KindMalformedTarget, target.URL, err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", Classify(target.URL, err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.WarnContext(ctx, "failed to close response body", "url", target.URL, "error", closeErr)
		}
	}()

	if kind, failed := kindForStatus(resp.StatusCode); failed {
		return "", &FetchError{
			Kind:       kind,
			URL:        target.URL,
			StatusCode: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return "", Classify(target.URL, fmt.Errorf("failed to read body: %w", err))
	}

	content := strings.TrimSpace(string(body))
	if content == "" {
		return "", NewFetchError(KindEmptyContent, target.URL, nil)
	}

	f.logger.DebugContext(ctx, "fetched content", "url", target.URL, "length", len(content))

	return content, nil
}

func kindForStatus(status int) (Kind, bool) {
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return KindNotFound, true
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindForbidden, true
	case status == http.StatusTooManyRequests:
		return KindRateLimited, true
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout, true
	case status >= 500:
		return KindServerError, true
	case status >= 400:
		return KindMalformedTarget, true
	default:
		return "", false
	}
}
