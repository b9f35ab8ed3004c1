package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"chatline/internal/domain/shared/events"
	"chatline/internal/domain/user"
)

var (
	ErrNotFound         = errors.New("chat: not found")
	ErrPeerRequired     = errors.New("chat: peer id is required")
	ErrSelfChat         = errors.New("chat: cannot open a chat with yourself")
	ErrNameRequired     = errors.New("chat: group name is required")
	ErrNameTaken        = errors.New("chat: group name already used")
	ErrNotGroup         = errors.New("chat: not a group chat")
	ErrNotParticipant   = errors.New("chat: user is not a participant")
	ErrLastParticipant  = errors.New("chat: admin is the only participant left")
	ErrDirectChatExists = errors.New("chat: direct chat already exists for this pair")
	ErrConcurrentUpdate = errors.New("chat: concurrent update detected")
	ErrMemberIDRequired = errors.New("chat: member id is required")
	ErrCreatorRequired  = errors.New("chat: creator id is required")
)

type ID string

// directChatName is the placeholder stored on one-to-one chats; clients
// render the peer's name instead.
const directChatName = "sender"

// Chat is either a one-to-one conversation (exactly two participants, no
// admin) or a named group (>=1 participants, exactly one admin who must be
// a participant). Participants keep insertion order but behave as a set.
type Chat struct {
	ID            ID
	Name          string
	IsGroup       bool
	Participants  []user.ID
	Admin         user.ID
	LastMessageID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int64
	events.EventRecorder
}

// Repository persists chats. AddParticipant and RemoveParticipant must be
// single atomic set-updates against the store; Save is a version-checked
// full-document write used by read-modify-write flows such as leave.
type Repository interface {
	ByID(ctx context.Context, id ID) (*Chat, error)
	// DirectByPair matches regardless of which id was stored first.
	DirectByPair(ctx context.Context, a, b user.ID) (*Chat, error)
	GroupByName(ctx context.Context, name string) (*Chat, error)
	ListByParticipant(ctx context.Context, id user.ID) ([]*Chat, error)
	// Insert fails with ErrDirectChatExists or ErrNameTaken when a
	// uniqueness constraint rejects the document.
	Insert(ctx context.Context, chat *Chat) error
	// Save writes the whole document if the stored version still matches
	// chat.Version, then bumps it. Returns ErrConcurrentUpdate otherwise.
	Save(ctx context.Context, chat *Chat) error
	// AddParticipant adds the member atomically (no-op when present) and
	// returns the updated chat.
	AddParticipant(ctx context.Context, id ID, member user.ID, now time.Time) (*Chat, error)
	// RemoveParticipant pulls the member atomically. The store must refuse
	// to pull the current admin so a racing transfer cannot orphan the
	// group; such calls return ErrConcurrentUpdate.
	RemoveParticipant(ctx context.Context, id ID, member user.ID, now time.Time) (*Chat, error)
	// SetLastMessage records the newest message reference and bumps the
	// activity timestamp. Unknown chat ids return ErrNotFound.
	SetLastMessage(ctx context.Context, id ID, messageID string, at time.Time) error
	Delete(ctx context.Context, id ID) error
}

type DirectParams struct {
	ID        ID
	Requester user.ID
	Peer      user.ID
	CreatedAt time.Time
}

func NewDirect(params DirectParams) (*Chat, error) {
	requester := user.ID(strings.TrimSpace(string(params.Requester)))
	peer := user.ID(strings.TrimSpace(string(params.Peer)))
	if requester == "" || peer == "" {
		return nil, ErrPeerRequired
	}
	if requester == peer {
		return nil, ErrSelfChat
	}
	now := normalizeTime(params.CreatedAt)
	c := &Chat{
		ID:           params.ID,
		Name:         directChatName,
		IsGroup:      false,
		Participants: []user.ID{requester, peer},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.Record(DirectChatCreated{ChatID: c.ID, Participants: c.participantsCopy(), At: now})
	return c, nil
}

type GroupParams struct {
	ID           ID
	Name         string
	Participants []user.ID
	Creator      user.ID
	CreatedAt    time.Time
}

// NewGroup deduplicates the participant list and always includes the
// creator, who becomes the admin.
func NewGroup(params GroupParams) (*Chat, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	creator := user.ID(strings.TrimSpace(string(params.Creator)))
	if creator == "" {
		return nil, ErrCreatorRequired
	}

	seen := make(map[user.ID]struct{}, len(params.Participants)+1)
	members := make([]user.ID, 0, len(params.Participants)+1)
	for _, raw := range append(params.Participants, creator) {
		id := user.ID(strings.TrimSpace(string(raw)))
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}

	now := normalizeTime(params.CreatedAt)
	c := &Chat{
		ID:           params.ID,
		Name:         name,
		IsGroup:      true,
		Participants: members,
		Admin:        creator,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.Record(GroupCreated{ChatID: c.ID, Name: name, Admin: creator, Participants: c.participantsCopy(), At: now})
	return c, nil
}

func (c *Chat) Rename(name string, now time.Time) error {
	if !c.IsGroup {
		return ErrNotGroup
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrNameRequired
	}
	old := c.Name
	c.Name = trimmed
	c.touch(now)
	c.Record(GroupRenamed{ChatID: c.ID, OldName: old, NewName: trimmed, At: c.UpdatedAt})
	return nil
}

// AddMember is idempotent: adding a present member changes nothing.
func (c *Chat) AddMember(member user.ID, now time.Time) error {
	if !c.IsGroup {
		return ErrNotGroup
	}
	member = user.ID(strings.TrimSpace(string(member)))
	if member == "" {
		return ErrMemberIDRequired
	}
	if c.HasParticipant(member) {
		return nil
	}
	c.Participants = append(c.Participants, member)
	c.touch(now)
	c.Record(MemberAdded{ChatID: c.ID, Member: member, At: c.UpdatedAt})
	return nil
}

// RemoveMember drops the member; removing an absent member is a no-op.
// Removing the admin follows the same succession rule as Leave so the
// admin-in-participants invariant holds on every transition.
func (c *Chat) RemoveMember(member user.ID, now time.Time) error {
	if !c.IsGroup {
		return ErrNotGroup
	}
	member = user.ID(strings.TrimSpace(string(member)))
	if member == "" {
		return ErrMemberIDRequired
	}
	if !c.HasParticipant(member) {
		return nil
	}
	return c.depart(member, now)
}

// Leave removes the user, reassigning the admin role to the first
// remaining participant in stored order when the admin departs. The sole
// remaining participant cannot leave; the group must be deleted instead.
func (c *Chat) Leave(member user.ID, now time.Time) error {
	if !c.IsGroup {
		return ErrNotGroup
	}
	if !c.HasParticipant(member) {
		return ErrNotParticipant
	}
	return c.depart(member, now)
}

func (c *Chat) depart(member user.ID, now time.Time) error {
	if member == c.Admin {
		successor, ok := c.firstOther(member)
		if !ok {
			return ErrLastParticipant
		}
		old := c.Admin
		c.Admin = successor
		c.touch(now)
		c.Record(AdminTransferred{ChatID: c.ID, From: old, To: successor, At: c.UpdatedAt})
	}
	remaining := make([]user.ID, 0, len(c.Participants)-1)
	for _, p := range c.Participants {
		if p != member {
			remaining = append(remaining, p)
		}
	}
	c.Participants = remaining
	c.touch(now)
	c.Record(MemberRemoved{ChatID: c.ID, Member: member, At: c.UpdatedAt})
	return nil
}

func (c *Chat) HasParticipant(id user.ID) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

func (c *Chat) firstOther(member user.ID) (user.ID, bool) {
	for _, p := range c.Participants {
		if p != member {
			return p, true
		}
	}
	return "", false
}

func (c *Chat) participantsCopy() []user.ID {
	return append([]user.ID(nil), c.Participants...)
}

func (c *Chat) touch(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	c.UpdatedAt = now.UTC()
}

// PairKey canonicalizes a participant pair so stores can enforce direct
// chat uniqueness regardless of insertion order.
func PairKey(a, b user.ID) string {
	ids := []string{string(a), string(b)}
	sort.Strings(ids)
	return ids[0] + "|" + ids[1]
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC()
}
