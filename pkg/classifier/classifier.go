// Package classifier asks a language model whether two content versions differ meaningfully.
package classifier

import (
	"context"
	"errors"

	"github.com/dukex/changewatch/pkg/models"
)

// NoMeaningfulChange is the sentinel a model answers with when nothing worth
// notifying changed.
const NoMeaningfulChange = "NO_MEANINGFUL_CHANGES"

var (
	// ErrMalformedResponse indicates an empty answer, or a JSON answer that is
	// not a valid verdict.
	ErrMalformedResponse = errors.New("malformed classifier response")

	// ErrUnavailable indicates no classifier is configured.
	ErrUnavailable = errors.New("classifier unavailable")
)

// Request carries the already size-capped content versions to compare.
type Request struct {
	Before     string
	After      string
	TargetType models.TargetType
}

// Verdict is the classifier's answer. Summary is empty when Meaningful is false.
type Verdict struct {
	Meaningful bool   `json:"meaningful"`
	Summary    string `json:"summary"`
}

// Classifier decides whether a change is meaningful.
type Classifier interface {
	Classify(ctx context.Context, req Request) (Verdict, error)
}

// Unavailable is the classifier used when no model is configured. It always
// fails so callers take their deterministic path.
type Unavailable struct{}

func (Unavailable) Classify(context.Context, Request) (Verdict, error) {
	return Verdict{}, ErrUnavailable
}
