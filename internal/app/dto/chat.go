package dto

import "time"

// Chat is the materialized view returned to callers: participant and admin
// details are resolved from the user directory, the last message from the
// messaging store. Credential fields are never part of this shape.
type Chat struct {
	ID           string       `json:"id"`
	Name         string       `json:"name,omitempty"`
	IsGroup      bool         `json:"is_group"`
	Participants []UserRef    `json:"participants"`
	Admin        *UserRef     `json:"admin,omitempty"`
	LastMessage  *LastMessage `json:"last_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// LastMessage carries the most recent message with its sender resolved.
// Absent entirely when the referenced message has been pruned.
type LastMessage struct {
	ID     string    `json:"id"`
	Text   string    `json:"text"`
	Sender *UserRef  `json:"sender,omitempty"`
	SentAt time.Time `json:"sent_at"`
}

// ChatList is the listing response, most recently active first.
type ChatList struct {
	Items []Chat `json:"items"`
}
