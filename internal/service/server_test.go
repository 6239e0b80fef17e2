package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hireme/internal/obs"
	"hireme/internal/storage"
	"hireme/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingPublisher struct {
	mu       sync.Mutex
	err      error
	messages []storage.Message
}

func (p *recordingPublisher) PublishMessage(_ context.Context, msg storage.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingPublisher) published() []storage.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]storage.Message, len(p.messages))
	copy(out, p.messages)
	return out
}

func newTestServer(t *testing.T, store storage.Store, events EventPublisher) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub(nil)
	t.Cleanup(hub.Close)
	handler := NewHandler(HandlerOptions{Store: store, Hub: hub, Events: events})
	srv := httptest.NewServer(NewRouter(handler, obs.Middleware{}, obs.HealthHandlers{}))
	t.Cleanup(srv.Close)
	return srv, hub
}

func doJSON(t *testing.T, method, url, userID string, body any) *http.Response {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req, err := http.NewRequest(method, url, &payload)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSend_PersistsAndReturnsMessage(t *testing.T) {
	store := memory.NewStore()
	srv, _ := newTestServer(t, store, nil)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/messages", "u1", map[string]string{
		"receiver": "u2",
		"content":  "  hello there  ",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created storage.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "u1", created.SenderID)
	assert.Equal(t, "u2", created.ReceiverID)
	assert.Equal(t, "hello there", created.Content, "content is trimmed")
	assert.False(t, created.CreatedAt.IsZero())

	stored, err := store.History(context.Background(), "u1", "u2", 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, created.ID, stored[0].ID)
}

func TestSend_Validation(t *testing.T) {
	srv, _ := newTestServer(t, memory.NewStore(), nil)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"empty content", map[string]string{"receiver": "u2", "content": "   "}},
		{"missing receiver", map[string]string{"content": "hi"}},
		{"self message", map[string]string{"receiver": "u1", "content": "hi"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/api/messages", "u1", tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestAPI_RequiresIdentity(t *testing.T) {
	srv, _ := newTestServer(t, memory.NewStore(), nil)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/messages/u2", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/messages", "", map[string]string{
		"receiver": "u2", "content": "hi",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHistory_ReturnsAscendingSharedThread(t *testing.T) {
	store := memory.NewStore()
	srv, _ := newTestServer(t, store, nil)

	for _, send := range []struct{ from, to, content string }{
		{"u1", "u2", "first"},
		{"u2", "u1", "second"},
		{"u1", "u2", "third"},
		{"u1", "u3", "other thread"},
	} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/messages", send.from, map[string]string{
			"receiver": send.to, "content": send.content,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	// Both participants see the same thread regardless of direction.
	for _, viewer := range []struct{ user, peer string }{{"u1", "u2"}, {"u2", "u1"}} {
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/messages/"+viewer.peer, viewer.user, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var history []storage.Message
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
		require.Len(t, history, 3)
		assert.Equal(t, "first", history[0].Content)
		assert.Equal(t, "second", history[1].Content)
		assert.Equal(t, "third", history[2].Content)
	}
}

func TestHistory_EmptyConversationIsEmptyList(t *testing.T) {
	srv, _ := newTestServer(t, memory.NewStore(), nil)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/messages/u2", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history []storage.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	assert.Empty(t, history)
	assert.NotNil(t, history)
}

func TestSend_RelaysToEventPublisher(t *testing.T) {
	events := &recordingPublisher{}
	srv, _ := newTestServer(t, memory.NewStore(), events)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/messages", "u1", map[string]string{
		"receiver": "u2", "content": "hi",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	published := events.published()
	require.Len(t, published, 1)
	assert.Equal(t, "u1", published[0].SenderID)
}

func TestSend_PublisherFailureDoesNotFailRequest(t *testing.T) {
	events := &recordingPublisher{err: errors.New("broker down")}
	store := memory.NewStore()
	srv, _ := newTestServer(t, store, events)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/messages", "u1", map[string]string{
		"receiver": "u2", "content": "hi",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	stored, err := store.History(context.Background(), "u1", "u2", 0)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

type failingStore struct{ storage.Store }

func (failingStore) SaveMessage(context.Context, storage.Message) error {
	return errors.New("db down")
}

func (failingStore) History(context.Context, string, string, int) ([]storage.Message, error) {
	return nil, errors.New("db down")
}

func TestStoreFailuresReturn500(t *testing.T) {
	srv, _ := newTestServer(t, failingStore{}, nil)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/messages", "u1", map[string]string{
		"receiver": "u2", "content": "hi",
	})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/messages/u2", "u1", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, memory.NewStore(), nil)

	for _, path := range []string{"/livez", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestPush_RequiresUserID(t *testing.T) {
	srv, _ := newTestServer(t, memory.NewStore(), nil)

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSend_PushesToBothParticipants(t *testing.T) {
	srv, _ := newTestServer(t, memory.NewStore(), nil)

	sender := dialPush(t, srv, "u1")
	receiver := dialPush(t, srv, "u2")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/messages", "u1", map[string]string{
		"receiver": "u2", "content": "hi",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for name, conn := range map[string]*pushConn{"sender": sender, "receiver": receiver} {
		msg := conn.next(t, 2*time.Second)
		assert.Equal(t, "u1", msg.SenderID, "%s sees the message", name)
		assert.Equal(t, "hi", msg.Content, "%s sees the message", name)
	}
}
