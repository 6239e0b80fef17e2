package memory

import (
	"context"
	"sync"

	"hireme/internal/storage"
)

// Store keeps messages in memory. It backs tests and single-node dev setups.
type Store struct {
	mu       sync.RWMutex
	messages map[string][]storage.Message // conversation id -> ascending CreatedAt
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{messages: make(map[string][]storage.Message)}
}

// SaveMessage appends a message to its conversation.
func (s *Store) SaveMessage(ctx context.Context, msg storage.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	return nil
}

// History returns the most recent limit messages between two users in
// ascending order.
func (s *Store) History(ctx context.Context, userA, userB string, limit int) ([]storage.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv := s.messages[storage.ConversationKey(userA, userB)]
	if limit > 0 && len(conv) > limit {
		conv = conv[len(conv)-limit:]
	}
	out := make([]storage.Message, len(conv))
	copy(out, conv)
	return out, nil
}

var _ storage.Store = (*Store)(nil)
