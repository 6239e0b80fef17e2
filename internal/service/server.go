package service

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"hireme/internal/obs"
	"hireme/internal/storage"
)

const defaultHistoryLimit = 200

// EventPublisher relays stored messages to an external bus for cross-node
// fan-out and downstream consumers.
type EventPublisher interface {
	PublishMessage(ctx context.Context, msg storage.Message) error
}

// MessagingHTTP exposes the messaging endpoints.
type MessagingHTTP interface {
	History(c *gin.Context)
	Send(c *gin.Context)
	Push(c *gin.Context)
}

// Handler serves the direct-messaging API: conversation history, message
// submission and the websocket push channel.
type Handler struct {
	store        storage.Store
	hub          *Hub
	events       EventPublisher
	historyLimit int
	logger       *slog.Logger
	upgrader     websocket.Upgrader
}

// HandlerOptions configure a Handler. Events may be nil; push then stays
// node-local. HistoryLimit <= 0 falls back to the default.
type HandlerOptions struct {
	Store        storage.Store
	Hub          *Hub
	Events       EventPublisher
	HistoryLimit int
	Logger       *slog.Logger
}

// NewHandler wires the messaging endpoints.
func NewHandler(opts HandlerOptions) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &Handler{
		store:        opts.Store,
		hub:          opts.Hub,
		events:       opts.Events,
		historyLimit: limit,
		logger:       logger.With("component", "messaging"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// NewRouter builds the gin engine with all messaging routes registered.
func NewRouter(h *Handler, mw obs.Middleware, health obs.HealthHandlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(mw.RequestID())
	router.Use(mw.RequestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-User-ID"},
		ExposeHeaders: []string{"Content-Length", "Content-Type", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	router.GET("/ws", h.Push)

	api := router.Group("/api", RequireUser())
	api.GET("/messages/:peerID", h.History)
	api.POST("/messages", h.Send)

	return router
}

const userIDKey = "userID"

// RequireUser resolves the caller from the X-User-ID header and rejects
// unidentified requests.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// History returns the conversation between the caller and the peer in
// ascending CreatedAt order.
func (h *Handler) History(c *gin.Context) {
	userID := currentUser(c)
	peerID := strings.TrimSpace(c.Param("peerID"))
	if peerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "peer id is required"})
		return
	}

	messages, err := h.store.History(c.Request.Context(), userID, peerID, h.historyLimit)
	if err != nil {
		h.logger.Error("load history failed", "error", err, "user_id", userID, "peer_id", peerID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot load history"})
		return
	}
	if messages == nil {
		messages = []storage.Message{}
	}
	c.JSON(http.StatusOK, messages)
}

// Send persists a message and pushes it to both participants' open sessions.
func (h *Handler) Send(c *gin.Context) {
	userID := currentUser(c)

	var req struct {
		Receiver string `json:"receiver"`
		Content  string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Receiver = strings.TrimSpace(req.Receiver)
	req.Content = strings.TrimSpace(req.Content)
	if req.Receiver == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "receiver is required"})
		return
	}
	if req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	if req.Receiver == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot message yourself"})
		return
	}

	msg := storage.Message{
		ID:             uuid.NewString(),
		ConversationID: storage.ConversationKey(userID, req.Receiver),
		SenderID:       userID,
		ReceiverID:     req.Receiver,
		Content:        req.Content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.store.SaveMessage(c.Request.Context(), msg); err != nil {
		h.logger.Error("save message failed", "error", err, "user_id", userID, "peer_id", req.Receiver)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot save message"})
		return
	}

	// Every open session of both participants sees the message, including the
	// sender's other devices.
	if h.hub != nil {
		h.hub.Publish(msg.SenderID, msg)
		h.hub.Publish(msg.ReceiverID, msg)
	}
	if h.events != nil {
		if err := h.events.PublishMessage(c.Request.Context(), msg); err != nil {
			h.logger.Error("publish message event failed", "error", err, "message_id", msg.ID)
		}
	}

	c.JSON(http.StatusCreated, msg)
}

// Push upgrades the connection and joins the caller's push room. Browsers
// cannot set headers on websocket dials, so identity comes from the query.
func (h *Handler) Push(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push unavailable"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err, "user_id", userID)
		return
	}
	h.hub.Join(userID, conn)
}

var _ MessagingHTTP = (*Handler)(nil)
