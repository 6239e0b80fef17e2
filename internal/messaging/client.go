package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"hireme/internal/chat"
)

// Config defines messaging REST client settings.
type Config struct {
	BaseURL     string
	UserID      string
	CallTimeout time.Duration
}

// Client consumes the messaging service REST API on behalf of one user. It
// implements both chat.MessagingAPI and chat.Identity.
type Client struct {
	baseURL     string
	userID      string
	httpClient  *http.Client
	callTimeout time.Duration
	logger      *slog.Logger
}

// apiMessage is the wire representation shared with the service.
type apiMessage struct {
	ID        string    `json:"_id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func (m apiMessage) toChat() chat.Message {
	return chat.Message{
		ID:             m.ID,
		State:          chat.StateConfirmed,
		ConversationID: chat.ConversationKey(m.Sender, m.Receiver),
		SenderID:       m.Sender,
		ReceiverID:     m.Receiver,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}

// NewClient builds a messaging client for the given user.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("messaging: base URL required")
	}
	if cfg.UserID == "" {
		return nil, errors.New("messaging: user id required")
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		userID:      cfg.UserID,
		httpClient:  &http.Client{},
		callTimeout: callTimeout,
		logger:      logger.With("component", "messaging"),
	}, nil
}

// LocalUserID implements chat.Identity.
func (c *Client) LocalUserID() string { return c.userID }

// History returns the conversation with peerID in display order.
func (c *Client) History(ctx context.Context, peerID string) ([]chat.Message, error) {
	callCtx, cancel := c.wrapCall(ctx)
	defer cancel()

	endpoint := c.baseURL + "/api/messages/" + url.PathEscape(peerID)
	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-User-ID", c.userID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("messaging: history: %w", err)
	}
	defer drainAndClose(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("messaging: history: unexpected status %d", resp.StatusCode)
	}

	var wire []apiMessage
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("messaging: history: decode: %w", err)
	}
	out := make([]chat.Message, 0, len(wire))
	for _, m := range wire {
		out = append(out, m.toChat())
	}
	return out, nil
}

// Send durably stores a message and returns the server's copy.
func (c *Client) Send(ctx context.Context, receiverID, content string) (chat.Message, error) {
	callCtx, cancel := c.wrapCall(ctx)
	defer cancel()

	body, err := json.Marshal(map[string]string{
		"receiver": receiverID,
		"content":  content,
	})
	if err != nil {
		return chat.Message{}, err
	}
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/api/messages", bytes.NewReader(body))
	if err != nil {
		return chat.Message{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", c.userID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return chat.Message{}, fmt.Errorf("messaging: send: %w", err)
	}
	defer drainAndClose(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		return chat.Message{}, fmt.Errorf("messaging: send: unexpected status %d", resp.StatusCode)
	}

	var wire apiMessage
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return chat.Message{}, fmt.Errorf("messaging: send: decode: %w", err)
	}
	return wire.toChat(), nil
}

func (c *Client) wrapCall(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, c.callTimeout)
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}

var (
	_ chat.MessagingAPI = (*Client)(nil)
	_ chat.Identity     = (*Client)(nil)
)
