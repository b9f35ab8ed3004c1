package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "chatline/internal/domain/chat"
	domainuser "chatline/internal/domain/user"
)

// ChatRepository persists chats in a single collection. Two partial unique
// indexes close the race windows structurally: direct_key (the sorted
// participant pair) for one-to-one chats and name for groups.
type ChatRepository struct {
	col *mongo.Collection
}

func NewChatRepository(db *mongo.Database) *ChatRepository {
	return &ChatRepository{col: db.Collection("chats")}
}

func (r *ChatRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "direct_key", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"is_group": false}),
		},
		{
			Keys: bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"is_group": true}),
		},
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}}},
	})
	return err
}

func (r *ChatRepository) ByID(ctx context.Context, id domainchat.ID) (*domainchat.Chat, error) {
	var doc chatDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// DirectByPair matches the unordered participant set: $all is satisfied
// regardless of which id was stored first. First document in natural
// order wins should historical duplicates exist.
func (r *ChatRepository) DirectByPair(ctx context.Context, a, b domainuser.ID) (*domainchat.Chat, error) {
	filter := bson.M{
		"is_group":     false,
		"participants": bson.M{"$all": bson.A{string(a), string(b)}},
	}
	var doc chatDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ChatRepository) GroupByName(ctx context.Context, name string) (*domainchat.Chat, error) {
	var doc chatDocument
	filter := bson.M{"is_group": true, "name": strings.TrimSpace(name)}
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ChatRepository) ListByParticipant(ctx context.Context, id domainuser.ID) ([]*domainchat.Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{"participants": string(id)}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*domainchat.Chat
	for cursor.Next(ctx) {
		var doc chatDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

func (r *ChatRepository) Insert(ctx context.Context, c *domainchat.Chat) error {
	doc := newChatDocument(c)
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if doc.IsGroup {
				return domainchat.ErrNameTaken
			}
			return domainchat.ErrDirectChatExists
		}
		return err
	}
	return nil
}

// Save is a compare-and-swap on the version field: the whole document is
// written only when nobody else has committed since the caller's read.
func (r *ChatRepository) Save(ctx context.Context, c *domainchat.Chat) error {
	doc := newChatDocument(c)
	filter := bson.M{"_id": doc.ID, "version": c.Version}
	doc.Version = c.Version + 1
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainchat.ErrNameTaken
		}
		return err
	}
	if res.MatchedCount == 0 {
		return domainchat.ErrConcurrentUpdate
	}
	c.Version = doc.Version
	return nil
}

func (r *ChatRepository) AddParticipant(ctx context.Context, id domainchat.ID, member domainuser.ID, now time.Time) (*domainchat.Chat, error) {
	filter := bson.M{"_id": string(id), "is_group": true}
	update := bson.M{
		"$addToSet": bson.M{"participants": string(member)},
		"$set":      bson.M{"updated_at": now.UTC().UnixMilli()},
		"$inc":      bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc chatDocument
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// RemoveParticipant guards the pull with admin != member so a concurrent
// admin transfer can never leave a group whose admin is not a participant.
func (r *ChatRepository) RemoveParticipant(ctx context.Context, id domainchat.ID, member domainuser.ID, now time.Time) (*domainchat.Chat, error) {
	filter := bson.M{
		"_id":      string(id),
		"is_group": true,
		"admin":    bson.M{"$ne": string(member)},
	}
	update := bson.M{
		"$pull": bson.M{"participants": string(member)},
		"$set":  bson.M{"updated_at": now.UTC().UnixMilli()},
		"$inc":  bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc chatDocument
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.toAggregate(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	// distinguish a missing group from a tripped admin guard
	exists := r.col.FindOne(ctx, bson.M{"_id": string(id), "is_group": true})
	if exists.Err() == nil {
		return nil, domainchat.ErrConcurrentUpdate
	}
	return nil, domainchat.ErrNotFound
}

func (r *ChatRepository) SetLastMessage(ctx context.Context, id domainchat.ID, messageID string, at time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"last_message_id": messageID,
			"updated_at":      at.UTC().UnixMilli(),
		},
		"$inc": bson.M{"version": 1},
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": string(id)}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domainchat.ErrNotFound
	}
	return nil
}

func (r *ChatRepository) Delete(ctx context.Context, id domainchat.ID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id), "is_group": true})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domainchat.ErrNotFound
	}
	return nil
}

type chatDocument struct {
	ID            string   `bson:"_id"`
	Name          string   `bson:"name"`
	IsGroup       bool     `bson:"is_group"`
	Participants  []string `bson:"participants"`
	Admin         string   `bson:"admin,omitempty"`
	DirectKey     string   `bson:"direct_key,omitempty"`
	LastMessageID string   `bson:"last_message_id,omitempty"`
	CreatedAt     int64    `bson:"created_at"`
	UpdatedAt     int64    `bson:"updated_at"`
	Version       int64    `bson:"version"`
}

func newChatDocument(c *domainchat.Chat) chatDocument {
	doc := chatDocument{
		ID:            string(c.ID),
		Name:          c.Name,
		IsGroup:       c.IsGroup,
		Participants:  make([]string, 0, len(c.Participants)),
		Admin:         string(c.Admin),
		LastMessageID: c.LastMessageID,
		CreatedAt:     c.CreatedAt.UnixMilli(),
		UpdatedAt:     c.UpdatedAt.UnixMilli(),
		Version:       c.Version,
	}
	for _, p := range c.Participants {
		doc.Participants = append(doc.Participants, string(p))
	}
	if !c.IsGroup && len(c.Participants) == 2 {
		doc.DirectKey = domainchat.PairKey(c.Participants[0], c.Participants[1])
	}
	return doc
}

func (d chatDocument) toAggregate() *domainchat.Chat {
	participants := make([]domainuser.ID, 0, len(d.Participants))
	for _, p := range d.Participants {
		participants = append(participants, domainuser.ID(p))
	}
	return &domainchat.Chat{
		ID:            domainchat.ID(d.ID),
		Name:          d.Name,
		IsGroup:       d.IsGroup,
		Participants:  participants,
		Admin:         domainuser.ID(d.Admin),
		LastMessageID: d.LastMessageID,
		CreatedAt:     timestampToTime(d.CreatedAt),
		UpdatedAt:     timestampToTime(d.UpdatedAt),
		Version:       d.Version,
	}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ domainchat.Repository = (*ChatRepository)(nil)
