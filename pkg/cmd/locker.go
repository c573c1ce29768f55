package cmd

import (
	"context"
	"fmt"

	"github.com/dukex/changewatch/pkg/dispatcher"
)

// NewLocker returns the lease provider and a function that releases its connection.
func NewLocker(ctx context.Context, provider, redisURL string) (dispatcher.Locker, func() error, error) {
	switch provider {
	case "local", "":
		return dispatcher.NewLocalLocker(), func() error { return nil }, nil
	case "redis":
		client, err := dispatcher.NewRedisClient(ctx, redisURL)
		if err != nil {
			return nil, nil, err
		}

		return dispatcher.NewRedisLocker(client), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported lock provider %q", provider)
	}
}
