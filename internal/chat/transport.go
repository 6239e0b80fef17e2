package chat

import "context"

// ConnState is the coarse connection status surfaced to the UI.
type ConnState int

const (
	ConnDisconnected ConnState = iota
	ConnConnected
)

func (s ConnState) String() string {
	if s == ConnConnected {
		return "connected"
	}
	return "disconnected"
}

// EventKind discriminates transport events.
type EventKind int

const (
	// EventMessage carries a peer-originated (or self-echoed) message.
	EventMessage EventKind = iota
	// EventError reports a recoverable transport fault.
	EventError
	// EventConnState reports a connection state change.
	EventConnState
)

// TransportEvent is a single event delivered by a Subscription.
type TransportEvent struct {
	Kind      EventKind
	Message   PushEvent
	Err       error
	ConnState ConnState
}

// Subscription is one open listener on the local user's push channel. Events
// stops delivering and is closed once the subscription ends, whether by Close
// or by a terminal transport fault.
type Subscription interface {
	// Events yields transport events in arrival order. Message delivery is
	// at-least-once; consumers must tolerate redelivery.
	Events() <-chan TransportEvent
	// Close releases the connection and all listeners. Safe to call more
	// than once.
	Close() error
}

// Transport maintains the persistent push channel for a user. Connection
// failures are reported as EventError events on the subscription rather than
// returned from Open, so a flaky network never crashes the caller.
type Transport interface {
	Open(ctx context.Context, userID string) Subscription
}

// MessagingAPI is the REST surface of the messaging collaborator.
type MessagingAPI interface {
	// History returns the conversation with peerID in display order.
	History(ctx context.Context, peerID string) ([]Message, error)
	// Send durably stores a message and returns the server's copy with its
	// durable id and authoritative timestamp.
	Send(ctx context.Context, receiverID, content string) (Message, error)
}

// Identity exposes the logged-in user. The chat core only ever reads it.
type Identity interface {
	LocalUserID() string
}
