package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hireme/internal/chat"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, UserID: "u1"}, nil)
	require.NoError(t, err)
	return client
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{UserID: "u1"}, nil)
	assert.Error(t, err)

	_, err = NewClient(Config{BaseURL: "http://localhost:8080"}, nil)
	assert.Error(t, err)
}

func TestClient_History(t *testing.T) {
	created := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/messages/u2", r.URL.Path)
		assert.Equal(t, "u1", r.Header.Get("X-User-ID"))

		_ = json.NewEncoder(w).Encode([]apiMessage{
			{ID: "m1", Sender: "u2", Receiver: "u1", Content: "hey", CreatedAt: created},
			{ID: "m2", Sender: "u1", Receiver: "u2", Content: "hi", CreatedAt: created.Add(time.Minute)},
		})
	}))

	history, err := client.History(context.Background(), "u2")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "m1", history[0].ID)
	assert.Equal(t, chat.StateConfirmed, history[0].State)
	assert.Equal(t, chat.ConversationKey("u1", "u2"), history[0].ConversationID)
	assert.True(t, history[0].CreatedAt.Equal(created))
}

func TestClient_HistoryErrorStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))

	_, err := client.History(context.Background(), "u2")
	assert.ErrorContains(t, err, "unexpected status 500")
}

func TestClient_Send(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/messages", r.URL.Path)
		assert.Equal(t, "u1", r.Header.Get("X-User-ID"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u2", body["receiver"])
		assert.Equal(t, "hello", body["content"])

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(apiMessage{
			ID: "m100", Sender: "u1", Receiver: "u2", Content: "hello", CreatedAt: time.Now().UTC(),
		})
	}))

	msg, err := client.Send(context.Background(), "u2", "hello")
	require.NoError(t, err)
	assert.Equal(t, "m100", msg.ID)
	assert.Equal(t, chat.StateConfirmed, msg.State)
	assert.Equal(t, "u1", msg.SenderID)
}

func TestClient_SendRejectedStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))

	_, err := client.Send(context.Background(), "u2", "hello")
	assert.ErrorContains(t, err, "unexpected status 400")
}

func TestClient_LocalUserID(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://localhost:9999", UserID: "u42"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "u42", client.LocalUserID())
}
