package memory

import (
	"context"
	"sync"

	domainmsg "chatline/internal/domain/message"
)

// MessageStore is a read-only stand-in for the messaging subsystem. Put
// exists so tests and local runs can seed last-message references.
type MessageStore struct {
	mu   sync.RWMutex
	byID map[domainmsg.ID]*domainmsg.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{byID: make(map[domainmsg.ID]*domainmsg.Message)}
}

func (s *MessageStore) ByID(ctx context.Context, id domainmsg.ID) (*domainmsg.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.byID[id]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, domainmsg.ErrNotFound
}

func (s *MessageStore) Put(m *domainmsg.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *m
	s.byID[m.ID] = &copied
}

func (s *MessageStore) Remove(id domainmsg.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

var _ domainmsg.ReadStore = (*MessageStore)(nil)
