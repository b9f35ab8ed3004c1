package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chatline/internal/app/dto"
	"chatline/internal/app/fault"
	"chatline/internal/app/policies"
	domainchat "chatline/internal/domain/chat"
	domainmsg "chatline/internal/domain/message"
	domainuser "chatline/internal/domain/user"
	"chatline/internal/domain/shared/events"
)

// casAttempts bounds the optimistic retry loops mandated for the
// find-then-create and read-modify-write races; exhaustion surfaces
// Conflict to the caller.
const casAttempts = 3

// Service is the chat core: direct chat identity resolution, the group
// lifecycle state machine and the listing query. All durable state lives
// in the chat repository; the service holds nothing mutable across calls.
type Service struct {
	Chats    domainchat.Repository
	Users    domainuser.Repository
	Messages domainmsg.ReadStore
	Events   policies.EventPublisher
	Logger   *slog.Logger
	Now      func() time.Time
}

// FindOrCreateDirect returns the canonical one-to-one chat between the
// requester and the peer, creating it on first contact. Two concurrent
// first contacts converge on one record: the loser's insert is rejected by
// the pair uniqueness constraint and the winner's chat is re-read.
func (s *Service) FindOrCreateDirect(ctx context.Context, requester, peer domainuser.ID) (dto.Chat, error) {
	if requester == "" || peer == "" {
		return dto.Chat{}, fault.New(fault.InvalidRequest, "peer id is required")
	}
	if requester == peer {
		return dto.Chat{}, fault.New(fault.InvalidRequest, "cannot open a chat with yourself")
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		existing, err := s.Chats.DirectByPair(ctx, requester, peer)
		if err == nil {
			return s.materialize(ctx, existing)
		}
		if !errors.Is(err, domainchat.ErrNotFound) {
			return dto.Chat{}, s.translate(err, "lookup direct chat")
		}

		created, err := domainchat.NewDirect(domainchat.DirectParams{
			ID:        domainchat.ID(uuid.NewString()),
			Requester: requester,
			Peer:      peer,
			CreatedAt: s.now(),
		})
		if err != nil {
			return dto.Chat{}, s.translate(err, "create direct chat")
		}
		err = s.Chats.Insert(ctx, created)
		if err == nil {
			s.publish(ctx, created)
			return s.materialize(ctx, created)
		}
		if errors.Is(err, domainchat.ErrDirectChatExists) {
			continue // lost the race, adopt the winner's record
		}
		return dto.Chat{}, s.translate(err, "persist direct chat")
	}
	return dto.Chat{}, fault.New(fault.Conflict, "direct chat creation kept racing, try again")
}

// ListChats returns every chat the user participates in, most recently
// active first, with participants, admin and last message resolved.
func (s *Service) ListChats(ctx context.Context, userID domainuser.ID) (dto.ChatList, error) {
	if userID == "" {
		return dto.ChatList{}, fault.New(fault.InvalidRequest, "user id is required")
	}
	chats, err := s.Chats.ListByParticipant(ctx, userID)
	if err != nil {
		return dto.ChatList{}, s.translate(err, "list chats")
	}
	return s.materializeList(ctx, chats)
}

type CreateGroupParams struct {
	Name         string
	Participants []domainuser.ID
	Creator      domainuser.ID
}

func (s *Service) CreateGroup(ctx context.Context, params CreateGroupParams) (dto.Chat, error) {
	if _, err := s.Chats.GroupByName(ctx, params.Name); err == nil {
		return dto.Chat{}, fault.New(fault.DuplicateName, "group name already exists")
	} else if !errors.Is(err, domainchat.ErrNotFound) {
		return dto.Chat{}, s.translate(err, "check group name")
	}

	group, err := domainchat.NewGroup(domainchat.GroupParams{
		ID:           domainchat.ID(uuid.NewString()),
		Name:         params.Name,
		Participants: params.Participants,
		Creator:      params.Creator,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return dto.Chat{}, s.translate(err, "create group")
	}
	if err := s.Chats.Insert(ctx, group); err != nil {
		// a concurrent create with the same name beat the pre-check
		if errors.Is(err, domainchat.ErrNameTaken) {
			return dto.Chat{}, fault.New(fault.DuplicateName, "group name already exists")
		}
		return dto.Chat{}, s.translate(err, "persist group")
	}
	s.publish(ctx, group)
	return s.materialize(ctx, group)
}

func (s *Service) RenameGroup(ctx context.Context, groupID domainchat.ID, newName string) (dto.Chat, error) {
	if other, err := s.Chats.GroupByName(ctx, newName); err == nil && other.ID != groupID {
		return dto.Chat{}, fault.New(fault.DuplicateName, "group name already exists")
	} else if err != nil && !errors.Is(err, domainchat.ErrNotFound) {
		return dto.Chat{}, s.translate(err, "check group name")
	}
	return s.mutateGroup(ctx, groupID, func(group *domainchat.Chat) error {
		return group.Rename(newName, s.now())
	})
}

// AddMember is a single atomic set-insert against the store, safe under
// concurrent calls; adding a present member is a no-op.
func (s *Service) AddMember(ctx context.Context, groupID domainchat.ID, member domainuser.ID) (dto.Chat, error) {
	if member == "" {
		return dto.Chat{}, fault.New(fault.InvalidRequest, "member id is required")
	}
	now := s.now()
	updated, err := s.Chats.AddParticipant(ctx, groupID, member, now)
	if err != nil {
		return dto.Chat{}, s.translate(err, "add member")
	}
	s.publishOne(ctx, domainchat.MemberAdded{ChatID: groupID, Member: member, At: now})
	return s.materialize(ctx, updated)
}

// RemoveMember pulls the member atomically. Removing an absent member is a
// no-op; removing the admin goes through the versioned read-modify-write
// path so succession happens in the same durable update.
func (s *Service) RemoveMember(ctx context.Context, groupID domainchat.ID, member domainuser.ID) (dto.Chat, error) {
	if member == "" {
		return dto.Chat{}, fault.New(fault.InvalidRequest, "member id is required")
	}
	for attempt := 0; attempt < casAttempts; attempt++ {
		group, err := s.Chats.ByID(ctx, groupID)
		if err != nil {
			return dto.Chat{}, s.translate(err, "load group")
		}
		if !group.IsGroup {
			return dto.Chat{}, fault.New(fault.NotFound, "group not found")
		}
		if !group.HasParticipant(member) {
			return s.materialize(ctx, group)
		}
		if member == group.Admin {
			return s.mutateGroup(ctx, groupID, func(g *domainchat.Chat) error {
				return g.RemoveMember(member, s.now())
			})
		}
		now := s.now()
		updated, err := s.Chats.RemoveParticipant(ctx, groupID, member, now)
		if err == nil {
			s.publishOne(ctx, domainchat.MemberRemoved{ChatID: groupID, Member: member, At: now})
			return s.materialize(ctx, updated)
		}
		if errors.Is(err, domainchat.ErrConcurrentUpdate) {
			continue // admin changed under us, re-read and retry
		}
		return dto.Chat{}, s.translate(err, "remove member")
	}
	return dto.Chat{}, fault.New(fault.Conflict, "group kept changing, try again")
}

// LeaveGroup removes the caller, transferring the admin role to the first
// remaining participant when the admin departs. Succession and removal
// commit as one versioned write; a stale read retries.
func (s *Service) LeaveGroup(ctx context.Context, groupID domainchat.ID, userID domainuser.ID) (dto.Chat, error) {
	if userID == "" {
		return dto.Chat{}, fault.New(fault.InvalidRequest, "user id is required")
	}
	return s.mutateGroup(ctx, groupID, func(group *domainchat.Chat) error {
		return group.Leave(userID, s.now())
	})
}

func (s *Service) DeleteGroup(ctx context.Context, groupID domainchat.ID) error {
	if err := s.Chats.Delete(ctx, groupID); err != nil {
		return s.translate(err, "delete group")
	}
	s.publishOne(ctx, domainchat.GroupDeleted{ChatID: groupID, At: s.now()})
	return nil
}

// mutateGroup runs a read-modify-write transition under optimistic
// versioning, retrying on concurrent updates.
func (s *Service) mutateGroup(ctx context.Context, groupID domainchat.ID, transition func(*domainchat.Chat) error) (dto.Chat, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		group, err := s.Chats.ByID(ctx, groupID)
		if err != nil {
			return dto.Chat{}, s.translate(err, "load group")
		}
		if !group.IsGroup {
			return dto.Chat{}, fault.New(fault.NotFound, "group not found")
		}
		if err := transition(group); err != nil {
			return dto.Chat{}, s.translate(err, "apply transition")
		}
		err = s.Chats.Save(ctx, group)
		if err == nil {
			s.publish(ctx, group)
			return s.materialize(ctx, group)
		}
		if errors.Is(err, domainchat.ErrConcurrentUpdate) {
			continue
		}
		return dto.Chat{}, s.translate(err, "persist group")
	}
	return dto.Chat{}, fault.New(fault.Conflict, "group kept changing, try again")
}

func (s *Service) publish(ctx context.Context, c *domainchat.Chat) {
	pending := c.PendingEvents()
	c.ClearEvents()
	for _, event := range pending {
		s.publishOne(ctx, event)
	}
}

func (s *Service) publishOne(ctx context.Context, event events.DomainEvent) {
	if s.Events == nil {
		return
	}
	s.Events.Publish(ctx, event)
}

func (s *Service) translate(err error, action string) error {
	var fe *fault.Error
	if errors.As(err, &fe) {
		return err
	}
	switch {
	case errors.Is(err, domainchat.ErrNotFound):
		return fault.New(fault.NotFound, "chat not found")
	case errors.Is(err, domainchat.ErrNameTaken):
		return fault.New(fault.DuplicateName, "group name already exists")
	case errors.Is(err, domainchat.ErrNotParticipant):
		return fault.New(fault.Forbidden, "not a participant of this group")
	case errors.Is(err, domainchat.ErrLastParticipant):
		return fault.New(fault.InvalidOperation, "admin cannot leave as the only participant")
	case errors.Is(err, domainchat.ErrNotGroup):
		return fault.New(fault.NotFound, "group not found")
	case errors.Is(err, domainchat.ErrPeerRequired),
		errors.Is(err, domainchat.ErrSelfChat),
		errors.Is(err, domainchat.ErrNameRequired),
		errors.Is(err, domainchat.ErrMemberIDRequired),
		errors.Is(err, domainchat.ErrCreatorRequired):
		return fault.Wrap(fault.InvalidRequest, "invalid request", err)
	case errors.Is(err, domainchat.ErrConcurrentUpdate),
		errors.Is(err, domainchat.ErrDirectChatExists):
		return fault.Wrap(fault.Conflict, "concurrent modification", err)
	}
	if s.Logger != nil {
		s.Logger.Error("chat store failure", "action", action, "error", err)
	}
	return fault.Wrap(fault.Unavailable, "chat store unavailable", err)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
