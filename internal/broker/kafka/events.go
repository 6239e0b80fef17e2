package kafka

import (
	"time"

	"hireme/internal/storage"
)

// Topic carries every stored message for cross-node push fan-out and
// downstream consumers.
const DefaultTopic = "messaging.events.v1"

// messageEvent is the wire envelope on the bus. Origin identifies the node
// that stored the message so consumers can skip their own events.
type messageEvent struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender"`
	ReceiverID     string    `json:"receiver"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	Origin         string    `json:"origin"`
}

func eventFromMessage(msg storage.Message, origin string) messageEvent {
	return messageEvent{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		ReceiverID:     msg.ReceiverID,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
		Origin:         origin,
	}
}

func (e messageEvent) message() storage.Message {
	return storage.Message{
		ID:             e.ID,
		ConversationID: e.ConversationID,
		SenderID:       e.SenderID,
		ReceiverID:     e.ReceiverID,
		Content:        e.Content,
		CreatedAt:      e.CreatedAt,
	}
}
