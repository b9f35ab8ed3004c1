package chat

import (
	"context"
	"errors"

	"chatline/internal/app/dto"
	domainchat "chatline/internal/domain/chat"
	domainmsg "chatline/internal/domain/message"
	domainuser "chatline/internal/domain/user"
)

func (s *Service) materialize(ctx context.Context, c *domainchat.Chat) (dto.Chat, error) {
	list, err := s.materializeList(ctx, []*domainchat.Chat{c})
	if err != nil {
		return dto.Chat{}, err
	}
	return list.Items[0], nil
}

// materializeList resolves directory entries for every participant, admin
// and last-message sender in one batch, then shapes the response. A last
// message that no longer exists is omitted rather than failed on; an
// unknown directory id degrades to a bare reference.
func (s *Service) materializeList(ctx context.Context, chats []*domainchat.Chat) (dto.ChatList, error) {
	messages := make(map[domainchat.ID]*domainmsg.Message, len(chats))
	ids := make([]domainuser.ID, 0, len(chats)*4)
	for _, c := range chats {
		ids = append(ids, c.Participants...)
		if c.IsGroup {
			ids = append(ids, c.Admin)
		}
		if c.LastMessageID == "" || s.Messages == nil {
			continue
		}
		msg, err := s.Messages.ByID(ctx, domainmsg.ID(c.LastMessageID))
		if err != nil {
			if errors.Is(err, domainmsg.ErrNotFound) {
				continue // pruned by the messaging subsystem
			}
			return dto.ChatList{}, s.translate(err, "resolve last message")
		}
		messages[c.ID] = msg
		ids = append(ids, msg.SenderID)
	}

	directory, err := s.resolveUsers(ctx, ids)
	if err != nil {
		return dto.ChatList{}, err
	}

	out := dto.ChatList{Items: make([]dto.Chat, 0, len(chats))}
	for _, c := range chats {
		view := dto.Chat{
			ID:           string(c.ID),
			IsGroup:      c.IsGroup,
			Participants: make([]dto.UserRef, 0, len(c.Participants)),
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		}
		if c.IsGroup {
			view.Name = c.Name
			admin := userRef(directory, c.Admin)
			view.Admin = &admin
		}
		for _, p := range c.Participants {
			view.Participants = append(view.Participants, userRef(directory, p))
		}
		if msg := messages[c.ID]; msg != nil {
			sender := userRef(directory, msg.SenderID)
			view.LastMessage = &dto.LastMessage{
				ID:     string(msg.ID),
				Text:   msg.Text,
				Sender: &sender,
				SentAt: msg.SentAt,
			}
		}
		out.Items = append(out.Items, view)
	}
	return out, nil
}

func (s *Service) resolveUsers(ctx context.Context, ids []domainuser.ID) (map[domainuser.ID]*domainuser.User, error) {
	if s.Users == nil || len(ids) == 0 {
		return map[domainuser.ID]*domainuser.User{}, nil
	}
	seen := make(map[domainuser.ID]struct{}, len(ids))
	unique := make([]domainuser.ID, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	directory, err := s.Users.ResolveMany(ctx, unique)
	if err != nil {
		return nil, s.translate(err, "resolve users")
	}
	return directory, nil
}

func userRef(directory map[domainuser.ID]*domainuser.User, id domainuser.ID) dto.UserRef {
	if u, ok := directory[id]; ok {
		summary := u.Summary()
		return dto.UserRef{
			ID:        string(summary.ID),
			Name:      summary.Name,
			Email:     summary.Email,
			AvatarURL: summary.AvatarURL,
		}
	}
	return dto.UserRef{ID: string(id)}
}
