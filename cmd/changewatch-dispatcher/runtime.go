package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dukex/changewatch/pkg/audit"
	"github.com/dukex/changewatch/pkg/cmd"
	"github.com/dukex/changewatch/pkg/detector"
	"github.com/dukex/changewatch/pkg/dispatcher"
	"github.com/dukex/changewatch/pkg/engine"
	"github.com/dukex/changewatch/pkg/eventbus"
	"github.com/dukex/changewatch/pkg/fetcher"
	"github.com/dukex/changewatch/pkg/otelhelper"
	"github.com/dukex/changewatch/pkg/persistence"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "changewatch-dispatcher"

// runtime owns every long-lived collaborator of the dispatcher binary.
type runtime struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	locker      dispatcher.Locker
	engine      *engine.Engine
	closers     []func(context.Context) error
}

func newRuntime(ctx context.Context, command *cli.Command, logger *slog.Logger) (rt *runtime, err error) {
	rt = &runtime{logger: logger}

	defer func() {
		if err != nil {
			rt.Close(ctx)
		}
	}()

	tracer, err := newTracer(ctx, command, rt)
	if err != nil {
		return rt, err
	}

	rt.persistence, err = cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return rt, err
	}

	rt.closers = append(rt.closers, rt.persistence.Close)

	rt.eventBus, err = cmd.NewEventBus(command.String("event-bus"), serviceName, command.String("kafka-brokers"), logger)
	if err != nil {
		return rt, err
	}

	if rt.eventBus != nil {
		bus := rt.eventBus
		rt.closers = append(rt.closers, func(context.Context) error { return bus.Close() })
	}

	locker, closeLocker, err := cmd.NewLocker(ctx, command.String("lock"), command.String("redis-url"))
	if err != nil {
		return rt, err
	}

	rt.locker = locker
	rt.closers = append(rt.closers, func(context.Context) error { return closeLocker() })

	config := engineConfig(command)
	client := &http.Client{}

	model, err := cmd.NewClassifier(client, cmd.ClassifierOptions{
		Provider: command.String("classifier"),
		URL:      command.String("classifier-url"),
		Model:    command.String("classifier-model"),
		APIKey:   command.String("classifier-api-key"),
	})
	if err != nil {
		return rt, err
	}

	notifier, err := cmd.NewNotifier(command.String("notify"), command.String("webhook-url"), client, rt.eventBus, logger)
	if err != nil {
		return rt, err
	}

	events := cmd.Publisher(rt.eventBus)
	targets := rt.persistence.TargetRepository()

	rt.engine, err = engine.New(engine.Dependencies{
		Fetcher:  fetcher.NewHTTPFetcher(logger, config.FetchTimeout),
		Detector: detector.New(model, logger, detector.WithTimeout(config.ClassifyTimeout)),
		Notifier: notifier,
		Content:  targets,
		Changes:  rt.persistence.ChangeEntryRepository(),
		Recorder: audit.NewRecorder(rt.persistence.AuditRecordRepository(), events, logger),
		Events:   events,
		Tracer:   tracer,
	}, config, logger)
	if err != nil {
		return rt, err
	}

	return rt, nil
}

// nolint:ireturn
func newTracer(ctx context.Context, command *cli.Command, rt *runtime) (trace.Tracer, error) {
	if !command.Bool("tracing") {
		return otelhelper.NoopTracer(), nil
	}

	tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	rt.closers = append(rt.closers, shutdown)

	return tracer, nil
}

func (rt *runtime) newDispatcher(command *cli.Command) (*dispatcher.Dispatcher, error) {
	return dispatcher.New(
		dispatcherConfig(command),
		rt.persistence.TargetRepository(),
		rt.engine,
		rt.locker,
		cmd.Publisher(rt.eventBus),
		rt.logger,
	)
}

// Close releases collaborators in reverse order of creation.
func (rt *runtime) Close(ctx context.Context) {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](context.WithoutCancel(ctx)); err != nil {
			rt.logger.ErrorContext(ctx, "Failed to close resource", "error", err)
		}
	}

	rt.closers = nil
}
