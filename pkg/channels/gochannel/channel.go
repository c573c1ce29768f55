// Package gochannel provides the in-memory event transport used by tests and single-process runs.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// NewPubSub returns one instance acting as both publisher and subscriber.
func NewPubSub(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 1000,
		},
		logger,
	)
}

// NewTestPubSub blocks each publish until the subscriber acks, so tests observe
// events in publish order.
func NewTestPubSub(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            10,
			BlockPublishUntilSubscriberAck: true,
		},
		logger,
	)
}
