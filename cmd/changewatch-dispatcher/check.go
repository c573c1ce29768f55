package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/changewatch/pkg/log"
	cli "github.com/urfave/cli/v3"
)

var errURLRequired = errors.New("target url argument is required")

// NewCheckCommand runs a single target once under the same lease and
// scheduling rules as the dispatcher.
func NewCheckCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Aliases:   []string{"c"},
		Usage:     "Check one stored target now",
		ArgsUsage: "<target-url>",
		Flags:     append(commonFlags(), dispatcherFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			url := command.Args().First()
			if url == "" {
				return errURLRequired
			}

			logger := log.WithModule(serviceName)

			rt, err := newRuntime(ctx, command, logger)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			d, err := rt.newDispatcher(command)
			if err != nil {
				return err
			}

			run, err := d.Dispatch(ctx, url)
			if run != nil {
				status := "succeeded"
				if !run.Succeeded() {
					status = "failed"
				}

				_, _ = fmt.Fprintf(command.Root().Writer, "%s %s: run %s %s after %d retries, %d changes\n",
					run.Target.URL, run.FinalStep, run.WorkflowID, status, run.RetryCount, len(run.ChangeEntries))
			}

			return err
		},
	}
}
