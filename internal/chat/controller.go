package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrSessionClosed is returned by operations on a torn-down session.
var ErrSessionClosed = errors.New("chat: session closed")

// Controller is the façade the rest of the application talks to. It opens one
// Session per conversation; switching peers means closing the old session and
// opening a new one, never reusing listeners or stores across peers.
type Controller struct {
	api       MessagingAPI
	transport Transport
	identity  Identity
	logger    *slog.Logger
}

// NewController wires the messaging collaborator, push transport and identity
// source together. Pass nil logger for the default.
func NewController(api MessagingAPI, transport Transport, identity Identity, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		api:       api,
		transport: transport,
		identity:  identity,
		logger:    logger.With("component", "chat"),
	}
}

// Open starts a conversation session with peerID: it subscribes to the push
// channel, kicks off the history load, and returns immediately. Faults on
// either path surface as retryable session state, never as an error here.
func (c *Controller) Open(ctx context.Context, peerID string) *Session {
	localUserID := c.identity.LocalUserID()
	store := NewStore()

	sessCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		localUserID: localUserID,
		peerID:      peerID,
		store:       store,
		engine:      NewEngine(store, localUserID, peerID, c.logger),
		api:         c.api,
		cancel:      cancel,
		done:        make(chan struct{}),
		logger:      c.logger.With("peer_id", peerID),
	}

	s.sub = c.transport.Open(sessCtx, localUserID)
	go s.pump()
	go s.loadHistory(sessCtx)

	return s
}

// Session is the per-conversation state: one store, one engine, one push
// subscription. All mutation is serialized through its mutex; every async
// continuation re-checks the closed flag before touching the store, so a
// result that resolves after teardown is discarded instead of corrupting a
// newer session's view.
type Session struct {
	mu          sync.Mutex
	localUserID string
	peerID      string
	store       *Store
	engine      *Engine
	api         MessagingAPI
	sub         Subscription
	cancel      context.CancelFunc
	done        chan struct{}
	logger      *slog.Logger

	closed        bool
	historyLoaded bool
	historyErr    error
	connState     ConnState
	connErr       error
}

// Peer returns the conversation partner's id.
func (s *Session) Peer() string { return s.peerID }

// Messages returns the conversation in display order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.All()
}

// HistoryErr reports the retryable history-load fault, if any. A failed load
// leaves the conversation open and sendable.
func (s *Session) HistoryErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyErr
}

// HistoryLoaded reports whether the initial history fetch has completed.
func (s *Session) HistoryLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyLoaded
}

// ConnState reports the push channel status together with the last transport
// fault. Existing messages stay visible while disconnected.
func (s *Session) ConnState() (ConnState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connState, s.connErr
}

// Send optimistically appends the message, then performs the durable send.
// On success the provisional entry is swapped in place for the server's copy;
// on failure it is rolled back and the error returned for the UI to surface.
func (s *Session) Send(ctx context.Context, content string) (Message, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Message{}, ErrSessionClosed
	}
	provisional, err := s.engine.StageSend(content)
	if err != nil {
		s.mu.Unlock()
		return Message{}, err
	}
	s.mu.Unlock()

	confirmed, err := s.api.Send(ctx, s.peerID, provisional.Content)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Message{}, ErrSessionClosed
	}
	if err != nil {
		s.engine.AbortSend(provisional.ID)
		s.logger.Warn("send failed, rolled back", "error", err)
		return Message{}, fmt.Errorf("send message: %w", err)
	}
	s.engine.ConfirmSend(provisional.ID, confirmed)
	return confirmed, nil
}

// RetryHistory re-issues the history load after a failure.
func (s *Session) RetryHistory(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.historyErr = nil
	s.mu.Unlock()

	s.loadHistory(ctx)
	return nil
}

// Close tears the session down: the push subscription is released and any
// in-flight history or send result is discarded when it resolves. Safe to
// call on every exit path, multiple times.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	return s.sub.Close()
}

// Done is closed once the event pump has drained, which tests use to wait for
// teardown to finish.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) loadHistory(ctx context.Context) {
	history, err := s.api.History(ctx, s.peerID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if err != nil {
		s.historyErr = fmt.Errorf("load history: %w", err)
		s.logger.Warn("history load failed", "error", err)
		return
	}
	s.store.Seed(history)
	s.historyLoaded = true
}

// pump drains the subscription, feeding message events to the engine. It owns
// no store state of its own; everything happens under the session mutex with
// the closed flag checked first.
func (s *Session) pump() {
	defer close(s.done)
	for ev := range s.sub.Events() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			continue
		}
		switch ev.Kind {
		case EventMessage:
			s.engine.HandleEvent(ev.Message)
		case EventError:
			s.connErr = ev.Err
			s.connState = ConnDisconnected
			s.logger.Warn("transport fault", "error", ev.Err)
		case EventConnState:
			s.connState = ev.ConnState
			if ev.ConnState == ConnConnected {
				s.connErr = nil
			}
		}
		s.mu.Unlock()
	}
}
