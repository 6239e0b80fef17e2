package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// State tells whether a message has been acknowledged by the server.
// A provisional message carries a client-generated id; a confirmed one
// carries the durable id the server assigned.
type State int

const (
	StateProvisional State = iota
	StateConfirmed
)

func (s State) String() string {
	switch s {
	case StateProvisional:
		return "provisional"
	case StateConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Message is a single chat message between two users.
type Message struct {
	ID             string
	State          State
	ConversationID string
	SenderID       string
	ReceiverID     string
	Content        string
	CreatedAt      time.Time
}

// Provisional reports whether the message is still waiting for server
// acknowledgement.
func (m Message) Provisional() bool {
	return m.State == StateProvisional
}

// ConversationKey derives the conversation identifier for a pair of users.
// The key is order-independent so both participants resolve the same thread.
func ConversationKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// NewProvisionalID generates a client-side id for an optimistic message.
// The State tag, not the id format, is what marks a message provisional.
func NewProvisionalID() string {
	return uuid.NewString()
}

// PushEvent is the wire shape of a message delivered over the push channel.
type PushEvent struct {
	ID         string    `json:"_id"`
	SenderID   string    `json:"sender"`
	ReceiverID string    `json:"receiver"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Confirmed converts a push event into a confirmed Message.
func (e PushEvent) Confirmed() Message {
	return Message{
		ID:             e.ID,
		State:          StateConfirmed,
		ConversationID: ConversationKey(e.SenderID, e.ReceiverID),
		SenderID:       e.SenderID,
		ReceiverID:     e.ReceiverID,
		Content:        e.Content,
		CreatedAt:      e.CreatedAt,
	}
}

func normalizeContent(content string) string {
	return strings.TrimSpace(content)
}
