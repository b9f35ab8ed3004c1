package obs

import (
	"context"
	"log/slog"

	"chatline/internal/domain/shared/events"
)

// EventLogger is the publisher used when no broker is configured: chat
// lifecycle events are only written to the log.
type EventLogger struct {
	Logger *slog.Logger
}

func (l EventLogger) Publish(ctx context.Context, event events.DomainEvent) {
	if l.Logger == nil || event == nil {
		return
	}
	l.Logger.Info("chat event",
		"event", event.EventName(),
		"aggregate_id", event.AggregateID(),
		"occurred_at", event.OccurredAt(),
	)
}
