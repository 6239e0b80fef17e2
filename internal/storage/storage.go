package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("storage: not found")

// Message is a persisted chat message. The json tags are the wire shape the
// REST API and the push channel both use.
type Message struct {
	ID             string    `bson:"_id" json:"_id"`
	ConversationID string    `bson:"conversation_id" json:"-"`
	SenderID       string    `bson:"sender" json:"sender"`
	ReceiverID     string    `bson:"receiver" json:"receiver"`
	Content        string    `bson:"content" json:"content"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
}

// ConversationKey derives the order-independent conversation id for a pair
// of users.
func ConversationKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// Store persists messages for the messaging service.
type Store interface {
	// SaveMessage appends a message to its conversation.
	SaveMessage(ctx context.Context, msg Message) error
	// History returns the conversation between two users in ascending
	// CreatedAt order, at most limit entries (the most recent ones).
	History(ctx context.Context, userA, userB string, limit int) ([]Message, error)
}
