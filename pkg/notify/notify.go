// Package notify delivers detected changes to recipients through pluggable sinks.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/changewatch/pkg/models"
)

// Sink delivers one change entry to one recipient. An empty recipient means
// the target has no subscribers and the sink should broadcast.
type Sink interface {
	Name() string
	Notify(ctx context.Context, entry models.ChangeEntry, recipient string) error
}

// SinkError attributes a delivery failure to the sink that produced it.
type SinkError struct {
	Sink      string
	Recipient string
	Err       error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("notify %s via %s: %v", e.Recipient, e.Sink, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// Multi fans an entry out to every sink; one failing sink does not stop the rest.
type Multi []Sink

func (m Multi) Name() string {
	return "multi"
}

func (m Multi) Notify(ctx context.Context, entry models.ChangeEntry, recipient string) error {
	var errs []error

	for _, sink := range m {
		if err := sink.Notify(ctx, entry, recipient); err != nil {
			errs = append(errs, &SinkError{Sink: sink.Name(), Recipient: recipient, Err: err})
		}
	}

	return errors.Join(errs...)
}
