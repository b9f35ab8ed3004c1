package message

import (
	"context"
	"errors"
	"time"

	"chatline/internal/domain/chat"
	"chatline/internal/domain/user"
)

var ErrNotFound = errors.New("message: not found")

type ID string

// Message is owned by the messaging subsystem; this core only reads it to
// resolve a chat's lastMessage reference for display.
type Message struct {
	ID       ID
	ChatID   chat.ID
	SenderID user.ID
	Text     string
	SentAt   time.Time
}

// ReadStore is the read-only surface of the messaging subsystem. A chat's
// lastMessage is a weak reference: ByID may legitimately return
// ErrNotFound after retention pruning, and callers must degrade to an
// absent message rather than fail.
type ReadStore interface {
	ByID(ctx context.Context, id ID) (*Message, error)
}
