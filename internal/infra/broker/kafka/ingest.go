package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	domainchat "chatline/internal/domain/chat"
)

// MessageIngest applies message lifecycle events from the messaging
// subsystem to the chat store, keeping the last-message reference and the
// activity ordering of chat listings current.
type MessageIngest struct {
	Chats  domainchat.Repository
	Logger *slog.Logger
}

type messageEventEnvelope struct {
	Name        string          `json:"name"`
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  int64           `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

type messageCreatedPayload struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	SentAt    int64  `json:"sent_at"`
}

func (i MessageIngest) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var env messageEventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		i.log(slog.LevelWarn, "message event decode failed", "error", err)
		return nil // malformed events are dropped, not retried
	}
	if env.Name != "message.created" {
		return nil
	}
	var payload messageCreatedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		i.log(slog.LevelWarn, "message payload decode failed", "error", err)
		return nil
	}
	if payload.ChatID == "" || payload.MessageID == "" {
		return nil
	}
	at := time.UnixMilli(payload.SentAt)
	if payload.SentAt == 0 {
		at = time.UnixMilli(env.OccurredAt)
	}
	err := i.Chats.SetLastMessage(ctx, domainchat.ID(payload.ChatID), payload.MessageID, at)
	if err != nil {
		if errors.Is(err, domainchat.ErrNotFound) {
			// the chat may have been deleted since the message was sent
			i.log(slog.LevelDebug, "message event for unknown chat", "chat_id", payload.ChatID)
			return nil
		}
		i.log(slog.LevelError, "last message update failed", "chat_id", payload.ChatID, "error", err)
		return err
	}
	return nil
}

func (i MessageIngest) log(level slog.Level, msg string, args ...any) {
	if i.Logger != nil {
		i.Logger.Log(context.Background(), level, msg, args...)
	}
}

var _ MessageHandler = MessageIngest{}
