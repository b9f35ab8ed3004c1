package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"chatline/internal/domain/shared/events"
)

// EventPublisher serializes chat lifecycle events to JSON and hands them
// to the producer. Publication is best effort: the state change has
// already committed, so failures are logged, never propagated.
type EventPublisher struct {
	Producer    *Producer
	TopicPrefix string
	Logger      *slog.Logger
}

type envelope struct {
	Name        string          `json:"name"`
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  int64           `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

func (p *EventPublisher) Publish(ctx context.Context, event events.DomainEvent) {
	if p.Producer == nil || event == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logError("event payload marshal failed", event, err)
		return
	}
	body, err := json.Marshal(envelope{
		Name:        event.EventName(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt().UnixMilli(),
		Payload:     payload,
	})
	if err != nil {
		p.logError("event envelope marshal failed", event, err)
		return
	}
	topic := p.topicFor(event.EventName())
	if err := p.Producer.Publish(ctx, topic, event.AggregateID(), body, map[string]string{
		"event": event.EventName(),
	}); err != nil {
		p.logError("event publish failed", event, err)
	}
}

// topicFor maps "chat.group.member_added" to "<prefix>chat.group".
func (p *EventPublisher) topicFor(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return p.TopicPrefix + strings.Join(parts, ".")
}

func (p *EventPublisher) logError(msg string, event events.DomainEvent, err error) {
	if p.Logger != nil {
		p.Logger.Error(msg, "event", event.EventName(), "aggregate_id", event.AggregateID(), "error", err)
	}
}
