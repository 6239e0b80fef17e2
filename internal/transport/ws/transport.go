package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hireme/internal/chat"
)

const (
	defaultDialTimeout = 5 * time.Second

	// Time allowed to write a message to the peer.
	writeWait = 3 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = 20 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 25 * time.Second

	// Max inbound frame size; push events are small.
	readLimit = 4096

	eventBuffer = 64
)

// Config defines websocket transport settings.
type Config struct {
	// URL of the push endpoint, e.g. ws://host:8080/ws.
	URL         string
	DialTimeout time.Duration
}

// Transport opens websocket subscriptions on the messaging service's push
// endpoint. One subscription per conversation session; the session owns the
// subscription lifecycle.
type Transport struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *slog.Logger
}

// New builds a websocket transport. Pass nil logger for the default.
func New(cfg Config, logger *slog.Logger) *Transport {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		logger: logger.With("component", "transport"),
	}
}

// Open joins the user's push channel. It returns immediately; the connection
// is established in the background and failures surface as EventError events
// on the subscription rather than an error here.
func (t *Transport) Open(ctx context.Context, userID string) chat.Subscription {
	sub := &subscription{
		events: make(chan chat.TransportEvent, eventBuffer),
		done:   make(chan struct{}),
		logger: t.logger,
	}
	go sub.run(ctx, t.dialer, t.cfg, userID)
	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.done:
		}
	}()
	return sub
}

type subscription struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	events chan chat.TransportEvent
	done   chan struct{}
	logger *slog.Logger
}

func (s *subscription) Events() <-chan chat.TransportEvent { return s.events }

// Close releases the connection and ends event delivery. Safe to call more
// than once and from any goroutine.
func (s *subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	if s.conn != nil {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = s.conn.Close()
	}
	return nil
}

// emit delivers an event unless the subscription has been closed.
func (s *subscription) emit(ev chat.TransportEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *subscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// adopt hands the dialed connection to the subscription. Reports false when
// Close won the race, in which case the caller must drop the connection.
func (s *subscription) adopt(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conn = conn
	return true
}

// run owns the connection: it dials, reads push events, and is the only
// sender on (and closer of) the events channel.
func (s *subscription) run(ctx context.Context, dialer *websocket.Dialer, cfg Config, userID string) {
	defer close(s.events)

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	endpoint := cfg.URL + "?user_id=" + url.QueryEscape(userID)
	conn, resp, err := dialer.DialContext(dialCtx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		s.logger.Warn("push channel dial failed", "error", err, "user_id", userID)
		s.emit(chat.TransportEvent{Kind: chat.EventError, Err: err})
		s.emit(chat.TransportEvent{Kind: chat.EventConnState, ConnState: chat.ConnDisconnected})
		return
	}
	if !s.adopt(conn) {
		_ = conn.Close()
		return
	}
	s.emit(chat.TransportEvent{Kind: chat.EventConnState, ConnState: chat.ConnConnected})

	go s.pingLoop(conn)

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !s.isClosed() {
				s.logger.Warn("push channel read failed", "error", err, "user_id", userID)
				s.emit(chat.TransportEvent{Kind: chat.EventError, Err: err})
				s.emit(chat.TransportEvent{Kind: chat.EventConnState, ConnState: chat.ConnDisconnected})
			}
			return
		}
		var ev chat.PushEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Debug("dropped malformed push event", "error", err)
			continue
		}
		s.emit(chat.TransportEvent{Kind: chat.EventMessage, Message: ev})
	}
}

func (s *subscription) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ chat.Transport = (*Transport)(nil)
