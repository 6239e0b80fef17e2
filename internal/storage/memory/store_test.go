package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hireme/internal/storage"
)

func save(t *testing.T, s *Store, id, sender, receiver, content string) {
	t.Helper()
	require.NoError(t, s.SaveMessage(context.Background(), storage.Message{
		ID:             id,
		ConversationID: storage.ConversationKey(sender, receiver),
		SenderID:       sender,
		ReceiverID:     receiver,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}))
}

func TestStore_HistoryKeepsInsertionOrder(t *testing.T) {
	s := NewStore()
	save(t, s, "m1", "u1", "u2", "first")
	save(t, s, "m2", "u2", "u1", "second")
	save(t, s, "m3", "u1", "u2", "third")

	history, err := s.History(context.Background(), "u2", "u1", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "m1", history[0].ID)
	assert.Equal(t, "m2", history[1].ID)
	assert.Equal(t, "m3", history[2].ID)
}

func TestStore_HistoryLimitKeepsMostRecent(t *testing.T) {
	s := NewStore()
	save(t, s, "m1", "u1", "u2", "a")
	save(t, s, "m2", "u1", "u2", "b")
	save(t, s, "m3", "u1", "u2", "c")

	history, err := s.History(context.Background(), "u1", "u2", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "m2", history[0].ID)
	assert.Equal(t, "m3", history[1].ID)
}

func TestStore_ConversationsAreIsolated(t *testing.T) {
	s := NewStore()
	save(t, s, "m1", "u1", "u2", "a")
	save(t, s, "m2", "u1", "u3", "b")

	history, err := s.History(context.Background(), "u1", "u2", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "m1", history[0].ID)
}

func TestStore_HistoryReturnsCopy(t *testing.T) {
	s := NewStore()
	save(t, s, "m1", "u1", "u2", "a")

	history, err := s.History(context.Background(), "u1", "u2", 0)
	require.NoError(t, err)
	history[0].Content = "mutated"

	again, err := s.History(context.Background(), "u1", "u2", 0)
	require.NoError(t, err)
	assert.Equal(t, "a", again[0].Content)
}
