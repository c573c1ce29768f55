// Package fetcher retrieves target content and reports failures as a closed set of kinds.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind enumerates every way a fetch can fail. Classification is a function of
// the kind alone.
type Kind string

const (
	KindTimeout         Kind = "timeout"
	KindConnection      Kind = "connection"
	KindRateLimited     Kind = "rate_limited"
	KindServerError     Kind = "server_error"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindMalformedTarget Kind = "malformed_target"
	KindEmptyContent    Kind = "empty_content"
)

// Fatal reports whether a failure of this kind must never be retried.
func (k Kind) Fatal() bool {
	switch k {
	case KindForbidden, KindNotFound, KindMalformedTarget, KindEmptyContent:
		return true
	case KindTimeout, KindConnection, KindRateLimited, KindServerError:
		return false
	default:
		return true
	}
}

// FetchError is the only error type a Fetcher is expected to return.
type FetchError struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s failed: %s", e.URL, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) ErrorKind() string {
	return string(e.Kind)
}

// NewFetchError creates a fetch error of the given kind.
func NewFetchError(kind Kind, targetURL string, err error) *FetchError {
	return &FetchError{Kind: kind, URL: targetURL, Err: err}
}

// Classify maps any error returned by a fetch onto a FetchError. Errors that
// carry no kind are treated as timeouts when a deadline expired and as
// connection failures otherwise.
func Classify(targetURL string, err error) *FetchError {
	if err == nil {
		return nil
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewFetchError(KindTimeout, targetURL, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewFetchError(KindTimeout, targetURL, err)
	}

	return NewFetchError(KindConnection, targetURL, err)
}
