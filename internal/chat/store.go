package chat

// Store is the ordered, deduplicated list of messages for one conversation.
// It is the single source of truth for what the user sees. A Store belongs to
// exactly one Session, which serializes all access; the Store itself performs
// no locking.
type Store struct {
	messages []Message
	durable  map[string]struct{}
}

// NewStore returns an empty message store.
func NewStore() *Store {
	return &Store{durable: make(map[string]struct{})}
}

// Append adds a message at the tail. It reports false, without modifying the
// store, when a message with the same durable id is already present.
func (s *Store) Append(msg Message) bool {
	if msg.State == StateConfirmed {
		if _, ok := s.durable[msg.ID]; ok {
			return false
		}
		s.durable[msg.ID] = struct{}{}
	}
	s.messages = append(s.messages, msg)
	return true
}

// Replace swaps the provisional entry identified by provisionalID for the
// confirmed message, keeping its position so the list never visibly reorders.
// A missing target is a benign race (the entry was rolled back or the session
// torn down) and reports false.
func (s *Store) Replace(provisionalID string, confirmed Message) bool {
	i := s.indexOf(provisionalID)
	if i < 0 || !s.messages[i].Provisional() {
		return false
	}
	if _, ok := s.durable[confirmed.ID]; ok {
		// The durable id is already on screen; keeping both would duplicate
		// it, so the provisional entry is dropped instead.
		s.removeAt(i)
		return false
	}
	confirmed.State = StateConfirmed
	s.messages[i] = confirmed
	s.durable[confirmed.ID] = struct{}{}
	return true
}

// Remove deletes the message with the given id, rolling back an optimistic
// entry whose send failed. Reports false when no such entry exists.
func (s *Store) Remove(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.removeAt(i)
	return true
}

// Seed inserts history ahead of any messages that arrived while the history
// request was in flight. Entries whose durable id is already present are
// skipped; relative order of existing entries is preserved.
func (s *Store) Seed(history []Message) {
	if len(history) == 0 {
		return
	}
	merged := make([]Message, 0, len(history)+len(s.messages))
	for _, msg := range history {
		if msg.State == StateConfirmed {
			if _, ok := s.durable[msg.ID]; ok {
				continue
			}
			s.durable[msg.ID] = struct{}{}
		}
		merged = append(merged, msg)
	}
	s.messages = append(merged, s.messages...)
}

// Contains reports whether a confirmed message with the durable id is present.
func (s *Store) Contains(durableID string) bool {
	_, ok := s.durable[durableID]
	return ok
}

// All returns the messages in display order. The slice is a copy; callers may
// range over it freely while the session keeps mutating the store.
func (s *Store) All() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages currently held.
func (s *Store) Len() int {
	return len(s.messages)
}

func (s *Store) indexOf(id string) int {
	for i, msg := range s.messages {
		if msg.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) removeAt(i int) {
	msg := s.messages[i]
	if msg.State == StateConfirmed {
		delete(s.durable, msg.ID)
	}
	s.messages = append(s.messages[:i], s.messages[i+1:]...)
}
