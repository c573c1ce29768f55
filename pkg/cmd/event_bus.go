package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/changewatch/pkg/channels/gochannel"
	"github.com/dukex/changewatch/pkg/channels/kafka"
	"github.com/dukex/changewatch/pkg/eventbus"
)

// NewEventBus returns nil for provider "none".
func NewEventBus(provider, serviceName, brokers string, logger *slog.Logger) (eventbus.EventBus, error) {
	adapter := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(adapter, serviceName, kafka.ParseBrokers(brokers))
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(logger, pub, sub), nil
	case "gochannel":
		pubSub := gochannel.NewPubSub(adapter)

		return eventbus.NewWatermillEventBus(logger, pubSub, pubSub), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider %q", provider)
	}
}

// Publisher hides a nil bus behind eventbus.Discard.
func Publisher(bus eventbus.EventBus) eventbus.EventPublisher {
	if bus == nil {
		return eventbus.Discard
	}

	return bus
}
