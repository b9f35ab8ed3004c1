package chat

import (
	"time"

	"chatline/internal/domain/user"
)

type DirectChatCreated struct {
	ChatID       ID
	Participants []user.ID
	At           time.Time
}

func (e DirectChatCreated) EventName() string     { return "chat.direct.created" }
func (e DirectChatCreated) AggregateID() string   { return string(e.ChatID) }
func (e DirectChatCreated) OccurredAt() time.Time { return e.At }

type GroupCreated struct {
	ChatID       ID
	Name         string
	Admin        user.ID
	Participants []user.ID
	At           time.Time
}

func (e GroupCreated) EventName() string     { return "chat.group.created" }
func (e GroupCreated) AggregateID() string   { return string(e.ChatID) }
func (e GroupCreated) OccurredAt() time.Time { return e.At }

type GroupRenamed struct {
	ChatID  ID
	OldName string
	NewName string
	At      time.Time
}

func (e GroupRenamed) EventName() string     { return "chat.group.renamed" }
func (e GroupRenamed) AggregateID() string   { return string(e.ChatID) }
func (e GroupRenamed) OccurredAt() time.Time { return e.At }

type MemberAdded struct {
	ChatID ID
	Member user.ID
	At     time.Time
}

func (e MemberAdded) EventName() string     { return "chat.group.member_added" }
func (e MemberAdded) AggregateID() string   { return string(e.ChatID) }
func (e MemberAdded) OccurredAt() time.Time { return e.At }

type MemberRemoved struct {
	ChatID ID
	Member user.ID
	At     time.Time
}

func (e MemberRemoved) EventName() string     { return "chat.group.member_removed" }
func (e MemberRemoved) AggregateID() string   { return string(e.ChatID) }
func (e MemberRemoved) OccurredAt() time.Time { return e.At }

type AdminTransferred struct {
	ChatID ID
	From   user.ID
	To     user.ID
	At     time.Time
}

func (e AdminTransferred) EventName() string     { return "chat.group.admin_transferred" }
func (e AdminTransferred) AggregateID() string   { return string(e.ChatID) }
func (e AdminTransferred) OccurredAt() time.Time { return e.At }

type GroupDeleted struct {
	ChatID ID
	At     time.Time
}

func (e GroupDeleted) EventName() string     { return "chat.group.deleted" }
func (e GroupDeleted) AggregateID() string   { return string(e.ChatID) }
func (e GroupDeleted) OccurredAt() time.Time { return e.At }
