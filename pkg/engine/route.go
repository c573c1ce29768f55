package engine

import (
	"strings"

	"github.com/dukex/changewatch/pkg/detector"
	"github.com/dukex/changewatch/pkg/fetcher"
	"github.com/dukex/changewatch/pkg/models"
)

// routeAfterFetch picks the step following a fetch attempt. retryCount already
// counts the failure being routed.
func routeAfterFetch(err *fetcher.FetchError, retryCount, maxRetries int) models.Step {
	switch {
	case err == nil:
		return models.StepDetect
	case err.Kind.Fatal():
		return models.StepErrorHandler
	case retryCount >= maxRetries:
		return models.StepErrorHandler
	default:
		return models.StepRetryHandler
	}
}

// unchanged reports whether detection can be skipped.
func unchanged(previous, current string) bool {
	return strings.TrimSpace(previous) == strings.TrimSpace(current)
}

func routeAfterDetect(outcome detector.Outcome, err error) models.Step {
	switch {
	case err != nil:
		return models.StepErrorHandler
	case outcome.Changed:
		return models.StepNotify
	default:
		return models.StepStore
	}
}

// failureFor categorizes a fetch failure that ended the run.
func failureFor(err *fetcher.FetchError) *models.RunError {
	category := models.ErrorCategoryRetriesExhausted
	if err.Kind.Fatal() {
		category = models.ErrorCategoryFetchFatal
	}

	return &models.RunError{
		Category: category,
		Kind:     string(err.Kind),
		Message:  err.Error(),
	}
}
