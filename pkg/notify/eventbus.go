package notify

import (
	"context"

	"github.com/dukex/changewatch/pkg/eventbus"
	"github.com/dukex/changewatch/pkg/events"
	"github.com/dukex/changewatch/pkg/models"
)

// EventBusSink publishes a change.detected event per delivery, keyed by workflow id.
type EventBusSink struct {
	publisher eventbus.EventPublisher
}

func NewEventBusSink(publisher eventbus.EventPublisher) *EventBusSink {
	return &EventBusSink{publisher: publisher}
}

func (s *EventBusSink) Name() string {
	return "eventbus"
}

func (s *EventBusSink) Notify(ctx context.Context, entry models.ChangeEntry, recipient string) error {
	return s.publisher.Publish(ctx, entry.WorkflowID, events.ChangeDetected{
		BaseEvent: events.NewBaseEvent(events.ChangeDetectedEvent, entry.WorkflowID),
		Entry:     entry,
		Recipient: recipient,
	})
}
