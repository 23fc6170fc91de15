package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parley-chat/parley/internal/chat"
)

func newTestApp(t *testing.T, mode ChatMode) *App {
	t.Helper()
	cfg := NewConfig()
	cfg.Mode = mode
	cfg.AllowedOrigins = []string{"*"}
	require.NoError(t, cfg.sanitize())

	app, err := NewApp(cfg, slog.Default())
	require.NoError(t, err)
	return app
}

func doJSON(t *testing.T, app *App, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	app.Routes().ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHandleHealth(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t, ModeConversations)

	w := doJSON(t, app, http.MethodGet, "/", nil)
	req.Equal(http.StatusOK, w.Code)
	req.Contains(w.Body.String(), "running")
}

func TestCreateConversation(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t, ModeConversations)

	w := doJSON(t, app, http.MethodPost, "/api/conversations", map[string]any{
		"participants": []chat.User{{ID: "1", Username: "alice", Name: "alice"}},
		"name":         "general",
	})
	req.Equal(http.StatusCreated, w.Code)

	conversation := decodeBody(t, w)["conversation"].(map[string]any)
	req.NotEmpty(conversation["id"])
	req.Equal("general", conversation["name"])
}

func TestCreateConversation_Requires_Participants(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t, ModeConversations)

	for _, body := range []map[string]any{
		{},
		{"participants": []chat.User{}},
	} {
		w := doJSON(t, app, http.MethodPost, "/api/conversations", body)
		req.Equal(http.StatusBadRequest, w.Code)
		req.Contains(decodeBody(t, w)["error"], "Participants")
	}
	req.Empty(app.Conversations.ListAll())
}

func TestGetConversation_Unknown_Is_404_Without_Mutation(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t, ModeConversations)

	w := doJSON(t, app, http.MethodGet, "/api/conversations/unknown-id", nil)
	req.Equal(http.StatusNotFound, w.Code)
	req.Empty(app.Conversations.ListAll())
}

func TestConversationMessage_Validation(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t, ModeConversations)
	created := app.Conversations.Create([]chat.User{{ID: "1", Username: "alice", Name: "alice"}}, "")
	target := fmt.Sprintf("/api/conversations/%s/messages", created.ID)

	// Missing content: 400 and the history stays untouched.
	w := doJSON(t, app, http.MethodPost, target, map[string]any{
		"sender": chat.User{ID: "1"},
	})
	req.Equal(http.StatusBadRequest, w.Code)

	// Missing sender id: 400.
	w = doJSON(t, app, http.MethodPost, target, map[string]any{"content": "hi"})
	req.Equal(http.StatusBadRequest, w.Code)

	history, err := app.Conversations.History(created.ID)
	req.NoError(err)
	req.Empty(history)
}

func TestConversationMessage_Appends(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t, ModeConversations)
	created := app.Conversations.Create([]chat.User{{ID: "1", Username: "alice", Name: "alice"}}, "")

	w := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/conversations/%s/messages", created.ID), map[string]any{
		"content": "hi",
		"sender":  chat.User{ID: "1", Username: "alice", Name: "alice"},
	})
	req.Equal(http.StatusCreated, w.Code)

	message := decodeBody(t, w)["message"].(map[string]any)
	req.Equal("hi", message["content"])

	history, err := app.Conversations.History(created.ID)
	req.NoError(err)
	req.Len(history, 1)
}

func TestConversationMessage_Unknown_Conversation(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t, ModeConversations)

	w := doJSON(t, app, http.MethodPost, "/api/conversations/unknown-id/messages", map[string]any{
		"content": "hi",
		"sender":  chat.User{ID: "1"},
	})
	req.Equal(http.StatusNotFound, w.Code)
}

func TestAddAndRemoveUser(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t, ModeConversations)
	created := app.Conversations.Create([]chat.User{{ID: "1", Username: "alice", Name: "alice"}}, "")
	bob := chat.User{ID: "2", Username: "bob", Name: "bob"}

	target := fmt.Sprintf("/api/conversations/%s/users", created.ID)

	// Adding twice keeps the participant set stable.
	for range 2 {
		w := doJSON(t, app, http.MethodPost, target, map[string]any{"user": bob})
		req.Equal(http.StatusOK, w.Code)
		req.Equal(true, decodeBody(t, w)["success"])
	}
	fetched, err := app.Conversations.Get(created.ID)
	req.NoError(err)
	req.Len(fetched.Participants, 2)

	// Removing, then removing again, both succeed.
	for range 2 {
		w := doJSON(t, app, http.MethodDelete, target+"/"+bob.ID, nil)
		req.Equal(http.StatusOK, w.Code)
	}
	fetched, err = app.Conversations.Get(created.ID)
	req.NoError(err)
	req.Len(fetched.Participants, 1)

	// Unknown conversation: 404 for both operations.
	w := doJSON(t, app, http.MethodPost, "/api/conversations/unknown-id/users", map[string]any{"user": bob})
	req.Equal(http.StatusNotFound, w.Code)
	w = doJSON(t, app, http.MethodDelete, "/api/conversations/unknown-id/users/2", nil)
	req.Equal(http.StatusNotFound, w.Code)
}

func TestAddUser_Requires_User(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t, ModeConversations)
	created := app.Conversations.Create([]chat.User{{ID: "1", Username: "alice", Name: "alice"}}, "")

	w := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/conversations/%s/users", created.ID), map[string]any{})
	req.Equal(http.StatusBadRequest, w.Code)
}

func TestUserConversations(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t, ModeConversations)
	alice := chat.User{ID: "1", Username: "alice", Name: "alice"}
	app.Conversations.Create([]chat.User{alice}, "first")
	app.Conversations.Create([]chat.User{alice}, "second")
	app.Conversations.Create([]chat.User{{ID: "2", Username: "bob", Name: "bob"}}, "other")

	w := doJSON(t, app, http.MethodGet, "/api/users/1/conversations", nil)
	req.Equal(http.StatusOK, w.Code)
	req.Len(decodeBody(t, w)["conversations"], 2)
}

func TestGlobalMessages_Lifecycle(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t, ModeGlobal)
	alice := chat.User{ID: "1", Username: "alice", Name: "alice"}

	w := doJSON(t, app, http.MethodGet, "/api/messages", nil)
	req.Equal(http.StatusOK, w.Code)
	req.Empty(decodeBody(t, w)["messages"])

	w = doJSON(t, app, http.MethodPost, "/api/messages", map[string]any{"content": "hi", "sender": alice})
	req.Equal(http.StatusCreated, w.Code)

	w = doJSON(t, app, http.MethodPost, "/api/messages", map[string]any{"sender": alice})
	req.Equal(http.StatusBadRequest, w.Code)
	w = doJSON(t, app, http.MethodPost, "/api/messages", map[string]any{"content": "hi"})
	req.Equal(http.StatusBadRequest, w.Code)

	w = doJSON(t, app, http.MethodGet, "/api/messages", nil)
	req.Len(decodeBody(t, w)["messages"], 1)

	w = doJSON(t, app, http.MethodDelete, "/api/messages", nil)
	req.Equal(http.StatusOK, w.Code)

	w = doJSON(t, app, http.MethodGet, "/api/messages", nil)
	req.Empty(decodeBody(t, w)["messages"])
}

func TestInvalidBody_Is_400(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t, ModeConversations)

	r := httptest.NewRequest(http.MethodPost, "/api/conversations", bytes.NewBufferString("{nope"))
	w := httptest.NewRecorder()
	app.Routes().ServeHTTP(w, r)
	req.Equal(http.StatusBadRequest, w.Code)
}
