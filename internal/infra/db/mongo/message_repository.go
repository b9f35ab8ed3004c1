package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	domainchat "chatline/internal/domain/chat"
	domainmsg "chatline/internal/domain/message"
	domainuser "chatline/internal/domain/user"
)

// MessageReadStore is the read-only view over the messaging subsystem's
// collection; this service never writes to it.
type MessageReadStore struct {
	col *mongo.Collection
}

func NewMessageReadStore(db *mongo.Database) *MessageReadStore {
	return &MessageReadStore{col: db.Collection("messages")}
}

func (r *MessageReadStore) ByID(ctx context.Context, id domainmsg.ID) (*domainmsg.Message, error) {
	var doc messageDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainmsg.ErrNotFound
		}
		return nil, err
	}
	return &domainmsg.Message{
		ID:       domainmsg.ID(doc.ID),
		ChatID:   domainchat.ID(doc.ChatID),
		SenderID: domainuser.ID(doc.SenderID),
		Text:     doc.Text,
		SentAt:   timestampToTime(doc.SentAt),
	}, nil
}

type messageDocument struct {
	ID       string `bson:"_id"`
	ChatID   string `bson:"chat_id"`
	SenderID string `bson:"sender_id"`
	Text     string `bson:"text"`
	SentAt   int64  `bson:"sent_at"`
}

var _ domainmsg.ReadStore = (*MessageReadStore)(nil)
