package cmd

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukex/changewatch/pkg/eventbus"
	"github.com/dukex/changewatch/pkg/notify"
)

// NewNotifier builds a fan-out sink from a comma separated list of log, webhook and eventbus.
func NewNotifier(
	names string,
	webhookURL string,
	client *http.Client,
	bus eventbus.EventBus,
	logger *slog.Logger,
) (notify.Sink, error) {
	var sinks notify.Multi

	for _, name := range strings.Split(names, ",") {
		switch strings.TrimSpace(name) {
		case "":
		case "log":
			sinks = append(sinks, notify.NewLogSink(logger, slog.LevelInfo))
		case "webhook":
			if webhookURL == "" {
				return nil, fmt.Errorf("webhook notifier requires a webhook url")
			}

			sinks = append(sinks, notify.NewWebhookSink(client, webhookURL, nil))
		case "eventbus":
			if bus == nil {
				return nil, fmt.Errorf("eventbus notifier requires an event bus")
			}

			sinks = append(sinks, notify.NewEventBusSink(bus))
		default:
			return nil, fmt.Errorf("unsupported notifier %q", name)
		}
	}

	if len(sinks) == 0 {
		return nil, fmt.Errorf("at least one notifier is required")
	}

	return sinks, nil
}
