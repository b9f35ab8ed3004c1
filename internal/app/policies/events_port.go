package policies

import (
	"context"

	"chatline/internal/domain/shared/events"
)

// EventPublisher fans chat lifecycle events out to interested consumers
// (message brokers, loggers). Publication is best effort: state has
// already been committed when events are drained, so implementations must
// not fail the calling operation.
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent)
}
