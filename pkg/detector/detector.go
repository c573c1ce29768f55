// Package detector decides whether the content fetched for a target changed meaningfully.
package detector

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/changewatch/pkg/classifier"
	"github.com/dukex/changewatch/pkg/models"
)

const (
	DefaultWindow  = 3000
	DefaultTimeout = 20 * time.Second
)

// Method records which path produced an Outcome.
type Method string

const (
	MethodIdentical  Method = "identical"
	MethodBaseline   Method = "baseline"
	MethodClassifier Method = "classifier"
	MethodFallback   Method = "fallback"
)

// Outcome is either no meaningful change or a change with its summary.
type Outcome struct {
	Changed bool
	Summary string
	Method  Method
}

// Detector applies the change policy: identical content short-circuits, the
// classifier judges real differences, and a deterministic comparison takes
// over whenever the classifier fails.
type Detector struct {
	classifier classifier.Classifier
	logger     *slog.Logger
	window     int
	timeout    time.Duration
}

// Option configures a Detector.
type Option func(*Detector)

// WithWindow caps each content version sent to the classifier at n runes.
func WithWindow(n int) Option {
	return func(d *Detector) {
		d.window = n
	}
}

// WithTimeout bounds a single classifier call.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Detector) {
		d.timeout = timeout
	}
}

// New creates a Detector. A nil classifier behaves as an unavailable one.
func New(c classifier.Classifier, logger *slog.Logger, opts ...Option) *Detector {
	if c == nil {
		c = classifier.Unavailable{}
	}

	d := &Detector{
		classifier: c,
		logger:     logger.With("module", "change_detector"),
		window:     DefaultWindow,
		timeout:    DefaultTimeout,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Detect compares previous and current content. It never fails: classifier
// errors resolve through Fallback.
func (d *Detector) Detect(ctx context.Context, previous, current string, targetType models.TargetType) (Outcome, error) {
	if strings.TrimSpace(previous) == strings.TrimSpace(current) {
		return Outcome{Method: MethodIdentical}, nil
	}

	if strings.TrimSpace(previous) == "" {
		d.logger.InfoContext(ctx, "no previous content, establishing baseline")

		return Outcome{Method: MethodBaseline}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	verdict, err := d.classifier.Classify(callCtx, classifier.Request{
		Before:     capRunes(previous, d.window),
		After:      capRunes(current, d.window),
		TargetType: targetType,
	})
	if err != nil {
		d.logger.WarnContext(ctx, "classifier failed, using fallback comparison", "error", err)

		return Fallback(previous, current), nil
	}

	if !verdict.Meaningful {
		return Outcome{Method: MethodClassifier}, nil
	}

	return Outcome{Changed: true, Summary: verdict.Summary, Method: MethodClassifier}, nil
}

func capRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}

	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	return string(runes[:n])
}
