package main

import (
	"github.com/dukex/changewatch/pkg/dispatcher"
	"github.com/dukex/changewatch/pkg/engine"
	cli "github.com/urfave/cli/v3"
)

// commonFlags configure everything a single run needs.
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL for persistence (file://path or postgres://...)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus for the run event stream (kafka, gochannel, none)",
			Value:   "none",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Value:   "localhost:9092",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "lock",
			Usage:   "Per-target lease provider (local, redis)",
			Value:   "local",
			Sources: cli.EnvVars("LOCK_PROVIDER"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for the redis lease provider",
			Value:   "redis://localhost:6379/0",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.StringFlag{
			Name:    "classifier",
			Usage:   "Change classifier (gemini, openai, none)",
			Value:   "none",
			Sources: cli.EnvVars("CLASSIFIER"),
		},
		&cli.StringFlag{
			Name:    "classifier-url",
			Usage:   "Base URL of the classifier API (provider default when empty)",
			Sources: cli.EnvVars("CLASSIFIER_URL"),
		},
		&cli.StringFlag{
			Name:    "classifier-model",
			Usage:   "Classifier model name (provider default when empty)",
			Sources: cli.EnvVars("CLASSIFIER_MODEL"),
		},
		&cli.StringFlag{
			Name:    "classifier-api-key",
			Usage:   "Classifier API key",
			Sources: cli.EnvVars("CLASSIFIER_API_KEY", "GEMINI_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "notify",
			Usage:   "Comma separated notification sinks (log, webhook, eventbus)",
			Value:   "log",
			Sources: cli.EnvVars("NOTIFY"),
		},
		&cli.StringFlag{
			Name:    "webhook-url",
			Usage:   "URL the webhook sink posts change notifications to",
			Sources: cli.EnvVars("WEBHOOK_URL"),
		},
		&cli.IntFlag{
			Name:    "max-retries",
			Usage:   "Fetch attempts per run",
			Value:   engine.DefaultMaxRetries,
			Sources: cli.EnvVars("MAX_RETRIES"),
		},
		&cli.DurationFlag{
			Name:    "backoff-unit",
			Usage:   "Unit multiplied by 2^retry_count between fetch attempts",
			Value:   engine.DefaultBackoffUnit,
			Sources: cli.EnvVars("BACKOFF_UNIT"),
		},
		&cli.DurationFlag{
			Name:    "fetch-timeout",
			Usage:   "Timeout of a single fetch",
			Value:   engine.DefaultFetchTimeout,
			Sources: cli.EnvVars("FETCH_TIMEOUT"),
		},
		&cli.DurationFlag{
			Name:    "classify-timeout",
			Usage:   "Timeout of a single classifier call",
			Value:   engine.DefaultClassifyTimeout,
			Sources: cli.EnvVars("CLASSIFY_TIMEOUT"),
		},
		&cli.DurationFlag{
			Name:    "notify-timeout",
			Usage:   "Timeout of a single notification",
			Value:   engine.DefaultNotifyTimeout,
			Sources: cli.EnvVars("NOTIFY_TIMEOUT"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export traces over OTLP/HTTP (configured by OTEL_EXPORTER_OTLP_*)",
			Sources: cli.EnvVars("TRACING_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}

func dispatcherFlags() []cli.Flag {
	defaults := dispatcher.DefaultConfig()

	return []cli.Flag{
		&cli.IntFlag{
			Name:    "workers",
			Usage:   "Targets checked concurrently",
			Value:   defaults.Workers,
			Sources: cli.EnvVars("WORKERS"),
		},
		&cli.IntFlag{
			Name:    "queue-size",
			Usage:   "Due targets buffered ahead of the workers",
			Value:   defaults.QueueSize,
			Sources: cli.EnvVars("QUEUE_SIZE"),
		},
		&cli.StringFlag{
			Name:    "poll-schedule",
			Usage:   "Cron spec for polling due targets",
			Value:   defaults.PollSchedule,
			Sources: cli.EnvVars("POLL_SCHEDULE"),
		},
		&cli.DurationFlag{
			Name:    "retry-delay",
			Usage:   "Delay before retrying a target whose run failed to persist",
			Value:   defaults.RetryDelay,
			Sources: cli.EnvVars("RETRY_DELAY"),
		},
		&cli.DurationFlag{
			Name:    "lease-ttl",
			Usage:   "Lifetime of a per-target lease",
			Value:   defaults.LeaseTTL,
			Sources: cli.EnvVars("LEASE_TTL"),
		},
		&cli.BoolFlag{
			Name:    "queue-on-start",
			Usage:   "Check every active target once at startup",
			Value:   true,
			Sources: cli.EnvVars("QUEUE_ON_START"),
		},
	}
}

func engineConfig(command *cli.Command) engine.Config {
	config := engine.DefaultConfig()
	config.MaxRetries = command.Int("max-retries")
	config.BackoffUnit = command.Duration("backoff-unit")
	config.FetchTimeout = command.Duration("fetch-timeout")
	config.ClassifyTimeout = command.Duration("classify-timeout")
	config.NotifyTimeout = command.Duration("notify-timeout")

	return config
}

func dispatcherConfig(command *cli.Command) dispatcher.Config {
	return dispatcher.Config{
		Workers:      command.Int("workers"),
		QueueSize:    command.Int("queue-size"),
		PollSchedule: command.String("poll-schedule"),
		RetryDelay:   command.Duration("retry-delay"),
		LeaseTTL:     command.Duration("lease-ttl"),
	}
}
