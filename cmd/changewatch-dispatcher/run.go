package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dukex/changewatch/pkg/events"
	"github.com/dukex/changewatch/pkg/log"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Poll due targets and check them until interrupted",
		Flags: append(commonFlags(),
			append(dispatcherFlags(), &cli.StringFlag{
				Name:    "dispatcher-id",
				Aliases: []string{"id"},
				Usage:   "Custom dispatcher ID (auto-generated if not provided)",
				Sources: cli.EnvVars("DISPATCHER_ID"),
			})...,
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			dispatcherID := command.String("dispatcher-id")
			if dispatcherID == "" {
				dispatcherID = "dispatcher-" + uuid.NewString()[:8]
			}

			logger := log.WithModule(serviceName).With("dispatcher_id", dispatcherID)
			logger.InfoContext(ctx, "Initializing changewatch dispatcher")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, command, logger)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			d, err := rt.newDispatcher(command)
			if err != nil {
				return err
			}

			// in-flight runs finish after a signal, so workers never see it
			workCtx := context.WithoutCancel(ctx)

			if err := d.Start(workCtx); err != nil {
				return err
			}

			if command.Bool("queue-on-start") {
				queued, err := d.QueueAll(workCtx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to queue initial targets", "error", err)
				} else {
					logger.InfoContext(ctx, "Queued initial targets", "count", queued)
				}
			}

			if rt.eventBus != nil {
				if err := rt.eventBus.Handle(events.TargetDueEvent, d.HandleTargetDue); err != nil {
					return fmt.Errorf("failed to register due handler: %w", err)
				}

				if err := rt.eventBus.Subscribe(ctx); err != nil {
					return fmt.Errorf("failed to subscribe to event bus: %w", err)
				}
			}

			<-ctx.Done()
			logger.InfoContext(ctx, "Shutting down gracefully...")

			d.Stop(workCtx)

			return nil
		},
	}
}
