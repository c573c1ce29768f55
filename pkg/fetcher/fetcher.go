package fetcher

import (
	"context"

	"github.com/dukex/changewatch/pkg/models"
)

// Fetcher returns the extracted content of a target.
type Fetcher interface {
	Fetch(ctx context.Context, target models.Target) (string, error)
}

// Func adapts a plain function to the Fetcher interface.
type Func func(ctx context.Context, target models.Target) (string, error)

func (f Func) Fetch(ctx context.Context, target models.Target) (string, error) {
	return f(ctx, target)
}
