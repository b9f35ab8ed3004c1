package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"

	domainchat "chatline/internal/domain/chat"
	"chatline/internal/infra/broker/kafka"
	"chatline/internal/infra/storage/memory"
)

func TestMessageIngest_UpdatesLastMessage(t *testing.T) {
	req := require.New(t)
	chats := memory.NewChatRepository()
	ctx := context.Background()

	direct, err := domainchat.NewDirect(domainchat.DirectParams{ID: "c1", Requester: "alice", Peer: "bob"})
	req.NoError(err)
	direct.ClearEvents()
	req.NoError(chats.Insert(ctx, direct))

	ingest := kafka.MessageIngest{Chats: chats}
	sentAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	req.NoError(ingest.Handle(ctx, consumerMessage(t, "message.created", map[string]any{
		"chat_id":    "c1",
		"message_id": "m1",
		"sent_at":    sentAt.UnixMilli(),
	})))

	updated, err := chats.ByID(ctx, "c1")
	req.NoError(err)
	req.Equal("m1", updated.LastMessageID)
	req.True(sentAt.Equal(updated.UpdatedAt))
}

func TestMessageIngest_IgnoresOtherEventsAndGarbage(t *testing.T) {
	req := require.New(t)
	chats := memory.NewChatRepository()
	ctx := context.Background()

	direct, err := domainchat.NewDirect(domainchat.DirectParams{ID: "c1", Requester: "alice", Peer: "bob"})
	req.NoError(err)
	direct.ClearEvents()
	req.NoError(chats.Insert(ctx, direct))

	ingest := kafka.MessageIngest{Chats: chats}

	req.NoError(ingest.Handle(ctx, consumerMessage(t, "message.deleted", map[string]any{
		"chat_id":    "c1",
		"message_id": "m1",
	})))
	req.NoError(ingest.Handle(ctx, &sarama.ConsumerMessage{Value: []byte("not json")}))

	updated, err := chats.ByID(ctx, "c1")
	req.NoError(err)
	req.Empty(updated.LastMessageID)
}

func TestMessageIngest_UnknownChatIsNotAnError(t *testing.T) {
	req := require.New(t)
	ingest := kafka.MessageIngest{Chats: memory.NewChatRepository()}

	req.NoError(ingest.Handle(context.Background(), consumerMessage(t, "message.created", map[string]any{
		"chat_id":    "gone",
		"message_id": "m1",
		"sent_at":    time.Now().UnixMilli(),
	})))
}

func consumerMessage(t *testing.T, name string, payload map[string]any) *sarama.ConsumerMessage {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	envelope, err := json.Marshal(map[string]any{
		"name":         name,
		"aggregate_id": payload["chat_id"],
		"occurred_at":  time.Now().UnixMilli(),
		"payload":      json.RawMessage(body),
	})
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Value: envelope}
}
