package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	domainchat "chatline/internal/domain/chat"
	domainuser "chatline/internal/domain/user"
)

// ChatRepository keeps chats in memory with the same concurrency contract
// as the Mongo implementation: pair/name uniqueness on insert, versioned
// compare-and-swap on Save, atomic set updates for membership.
type ChatRepository struct {
	mu        sync.RWMutex
	byID      map[domainchat.ID]*domainchat.Chat
	directKey map[string]domainchat.ID
	groupName map[string]domainchat.ID
}

func NewChatRepository() *ChatRepository {
	return &ChatRepository{
		byID:      make(map[domainchat.ID]*domainchat.Chat),
		directKey: make(map[string]domainchat.ID),
		groupName: make(map[string]domainchat.ID),
	}
}

func (r *ChatRepository) ByID(ctx context.Context, id domainchat.ID) (*domainchat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.byID[id]; ok {
		return cloneChat(c), nil
	}
	return nil, domainchat.ErrNotFound
}

func (r *ChatRepository) DirectByPair(ctx context.Context, a, b domainuser.ID) (*domainchat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.directKey[domainchat.PairKey(a, b)]; ok {
		if c, ok := r.byID[id]; ok {
			return cloneChat(c), nil
		}
	}
	return nil, domainchat.ErrNotFound
}

func (r *ChatRepository) GroupByName(ctx context.Context, name string) (*domainchat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.groupName[strings.TrimSpace(name)]; ok {
		if c, ok := r.byID[id]; ok {
			return cloneChat(c), nil
		}
	}
	return nil, domainchat.ErrNotFound
}

func (r *ChatRepository) ListByParticipant(ctx context.Context, id domainuser.ID) ([]*domainchat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainchat.Chat
	for _, c := range r.byID {
		if c.HasParticipant(id) {
			out = append(out, cloneChat(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *ChatRepository) Insert(ctx context.Context, c *domainchat.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.IsGroup {
		if _, ok := r.groupName[c.Name]; ok {
			return domainchat.ErrNameTaken
		}
	} else {
		key := pairKeyOf(c)
		if _, ok := r.directKey[key]; ok {
			return domainchat.ErrDirectChatExists
		}
		r.directKey[key] = c.ID
	}
	stored := cloneChat(c)
	r.byID[c.ID] = stored
	if c.IsGroup {
		r.groupName[c.Name] = c.ID
	}
	return nil
}

func (r *ChatRepository) Save(ctx context.Context, c *domainchat.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[c.ID]
	if !ok || current.Version != c.Version {
		return domainchat.ErrConcurrentUpdate
	}
	if c.IsGroup && c.Name != current.Name {
		if owner, taken := r.groupName[c.Name]; taken && owner != c.ID {
			return domainchat.ErrNameTaken
		}
		delete(r.groupName, current.Name)
		r.groupName[c.Name] = c.ID
	}
	c.Version++
	r.byID[c.ID] = cloneChat(c)
	return nil
}

func (r *ChatRepository) AddParticipant(ctx context.Context, id domainchat.ID, member domainuser.ID, now time.Time) (*domainchat.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || !c.IsGroup {
		return nil, domainchat.ErrNotFound
	}
	if !c.HasParticipant(member) {
		c.Participants = append(c.Participants, member)
	}
	c.UpdatedAt = now.UTC()
	c.Version++
	return cloneChat(c), nil
}

func (r *ChatRepository) RemoveParticipant(ctx context.Context, id domainchat.ID, member domainuser.ID, now time.Time) (*domainchat.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || !c.IsGroup {
		return nil, domainchat.ErrNotFound
	}
	if c.Admin == member {
		// same guard as the conditional store update: never orphan the admin
		return nil, domainchat.ErrConcurrentUpdate
	}
	remaining := c.Participants[:0]
	for _, p := range c.Participants {
		if p != member {
			remaining = append(remaining, p)
		}
	}
	c.Participants = remaining
	c.UpdatedAt = now.UTC()
	c.Version++
	return cloneChat(c), nil
}

func (r *ChatRepository) Delete(ctx context.Context, id domainchat.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || !c.IsGroup {
		return domainchat.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.groupName, c.Name)
	return nil
}

func (r *ChatRepository) SetLastMessage(ctx context.Context, id domainchat.ID, messageID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return domainchat.ErrNotFound
	}
	c.LastMessageID = messageID
	c.UpdatedAt = at.UTC()
	c.Version++
	return nil
}

func pairKeyOf(c *domainchat.Chat) string {
	if len(c.Participants) != 2 {
		return string(c.ID)
	}
	return domainchat.PairKey(c.Participants[0], c.Participants[1])
}

func cloneChat(c *domainchat.Chat) *domainchat.Chat {
	copied := *c
	copied.Participants = append([]domainuser.ID(nil), c.Participants...)
	copied.ClearEvents()
	return &copied
}

var _ domainchat.Repository = (*ChatRepository)(nil)
