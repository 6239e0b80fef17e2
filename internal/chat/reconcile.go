package chat

import (
	"errors"
	"log/slog"
	"time"
)

// ErrEmptyContent rejects sends whose content is empty or whitespace-only.
var ErrEmptyContent = errors.New("chat: message content is empty")

// Outcome describes what the engine decided to do with an incoming event.
type Outcome int

const (
	// OutcomeAppended: a peer message was added to the store.
	OutcomeAppended Outcome = iota
	// OutcomeEchoPending: the event echoes a local send whose confirmation
	// is still in flight; the confirm path will swap the entry.
	OutcomeEchoPending
	// OutcomeEchoDropped: the event echoes a local send with no pending
	// provisional entry (already confirmed or rolled back).
	OutcomeEchoDropped
	// OutcomeDuplicate: the durable id is already on screen.
	OutcomeDuplicate
	// OutcomeForeign: the event belongs to another conversation leaking
	// through the shared per-user channel.
	OutcomeForeign
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAppended:
		return "appended"
	case OutcomeEchoPending:
		return "echo_pending"
	case OutcomeEchoDropped:
		return "echo_dropped"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeForeign:
		return "foreign"
	default:
		return "unknown"
	}
}

// Engine reconciles optimistic local sends with server-confirmed echoes and
// transport-pushed peer messages. Every store mutation that does not come from
// the user typing goes through here. Like the Store it guards, an Engine is
// owned by one Session and is not safe for concurrent use.
type Engine struct {
	store       *Store
	localUserID string
	peerID      string
	convID      string
	lastStaged  time.Time
	logger      *slog.Logger
	now         func() time.Time
}

// NewEngine builds an engine for the conversation between localUserID and
// peerID. Pass nil logger for the default.
func NewEngine(store *Store, localUserID, peerID string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:       store,
		localUserID: localUserID,
		peerID:      peerID,
		convID:      ConversationKey(localUserID, peerID),
		logger:      logger.With("component", "reconcile"),
		now:         time.Now,
	}
}

// HandleEvent decides, for a message delivered over the push channel, whether
// to append, ignore, or drop it. Delivery is at-least-once, so redelivered
// events must come out as no-ops.
func (e *Engine) HandleEvent(ev PushEvent) Outcome {
	switch {
	case ev.SenderID == e.localUserID:
		// The server fans sent messages back to all of the sender's open
		// sessions. The REST confirm path owns the provisional swap, so the
		// echo itself is never inserted.
		if e.hasPendingEcho(ev) {
			return OutcomeEchoPending
		}
		e.logger.Debug("dropped self echo", "event_id", ev.ID)
		return OutcomeEchoDropped
	case e.store.Contains(ev.ID):
		e.logger.Debug("dropped duplicate event", "event_id", ev.ID)
		return OutcomeDuplicate
	case ev.SenderID == e.peerID && ev.ReceiverID == e.localUserID:
		e.store.Append(ev.Confirmed())
		return OutcomeAppended
	default:
		e.logger.Debug("dropped event for another conversation",
			"event_id", ev.ID, "sender", ev.SenderID, "receiver", ev.ReceiverID)
		return OutcomeForeign
	}
}

// StageSend validates content, builds a provisional message, and appends it
// for optimistic display. CreatedAt is kept monotonically non-decreasing
// across local sends so the list never jitters from clock adjustments.
func (e *Engine) StageSend(content string) (Message, error) {
	content = normalizeContent(content)
	if content == "" {
		return Message{}, ErrEmptyContent
	}
	at := e.now()
	if at.Before(e.lastStaged) {
		at = e.lastStaged
	}
	e.lastStaged = at

	msg := Message{
		ID:             NewProvisionalID(),
		State:          StateProvisional,
		ConversationID: e.convID,
		SenderID:       e.localUserID,
		ReceiverID:     e.peerID,
		Content:        content,
		CreatedAt:      at,
	}
	e.store.Append(msg)
	return msg, nil
}

// ConfirmSend swaps the provisional entry for the server-assigned message,
// in place. A missing provisional is a benign race and reports false.
func (e *Engine) ConfirmSend(provisionalID string, confirmed Message) bool {
	confirmed.State = StateConfirmed
	if confirmed.ConversationID == "" {
		confirmed.ConversationID = e.convID
	}
	ok := e.store.Replace(provisionalID, confirmed)
	if !ok {
		e.logger.Debug("confirm had no provisional target",
			"provisional_id", provisionalID, "message_id", confirmed.ID)
	}
	return ok
}

// AbortSend rolls back a provisional entry whose durable send failed.
func (e *Engine) AbortSend(provisionalID string) bool {
	return e.store.Remove(provisionalID)
}

// hasPendingEcho reports whether a provisional local send matching the echoed
// event is still awaiting confirmation.
func (e *Engine) hasPendingEcho(ev PushEvent) bool {
	for _, msg := range e.store.All() {
		if msg.Provisional() && msg.Content == ev.Content && msg.ReceiverID == ev.ReceiverID {
			return true
		}
	}
	return false
}
