package engine

import (
	"context"

	"github.com/dukex/changewatch/pkg/models"
)

// Result is delivered by Start once the run is terminal.
type Result struct {
	Run *models.WorkflowRun
	Err error
}

// Start runs in a new goroutine and delivers exactly one Result on the
// returned channel, which is then closed.
func (e *Engine) Start(ctx context.Context, target models.Target, previous string) <-chan Result {
	done := make(chan Result, 1)

	go func() {
		defer close(done)

		run, err := e.Run(ctx, target, previous)
		done <- Result{Run: run, Err: err}
	}()

	return done
}
