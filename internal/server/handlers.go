package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/store"
)

type createConversationRequest struct {
	Participants []chat.User `json:"participants" validate:"required,min=1"`
	Name         string      `json:"name"`
}

type postMessageRequest struct {
	Content string    `json:"content" validate:"required"`
	Sender  chat.User `json:"sender"`
}

type addUserRequest struct {
	User chat.User `json:"user"`
}

// ServeWS upgrades the request and hands the connection to the hub, which
// registers it and launches the session pumps.
func (a *App) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(a, conn, r.RemoteAddr)
	select {
	case a.Hub.register <- client:
	case <-a.Hub.ctx.Done():
		_ = conn.Close()
	}
}

// HandleHealth reports that the server is up.
func (a *App) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "Parley chat server is running!")
}

// HandleListConversations serves GET /api/conversations.
func (a *App) HandleListConversations(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]any{
		"conversations": a.Conversations.ListAll(),
	})
}

// HandleGetConversation serves GET /api/conversations/{id}.
func (a *App) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conversation, err := a.Conversations.Get(id)
	if err != nil {
		a.writeError(w, http.StatusNotFound, "Conversation not found: "+id)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"conversation": conversation})
}

// HandleCreateConversation serves POST /api/conversations.
func (a *App) HandleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if !a.bind(w, r, &req) {
		return
	}
	if err := a.validate.Struct(req); err != nil {
		a.writeError(w, http.StatusBadRequest, "Participants are required")
		return
	}

	conversation := a.Conversations.Create(req.Participants, req.Name)
	a.writeJSON(w, http.StatusCreated, map[string]any{"conversation": conversation})
}

// HandleConversationMessage serves POST /api/conversations/{id}/messages.
func (a *App) HandleConversationMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req postMessageRequest
	if !a.bind(w, r, &req) {
		return
	}
	if err := a.validate.Struct(req); err != nil {
		a.writeError(w, http.StatusBadRequest, "Message content is required")
		return
	}
	if req.Sender.ID == "" {
		a.writeError(w, http.StatusBadRequest, "Sender is required")
		return
	}

	message, err := chat.NewMessage(req.Content, req.Sender)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.Conversations.AppendMessage(id, message); err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, map[string]any{"message": message})
}

// HandleAddUser serves POST /api/conversations/{id}/users.
func (a *App) HandleAddUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req addUserRequest
	if !a.bind(w, r, &req) {
		return
	}
	if req.User.ID == "" {
		a.writeError(w, http.StatusBadRequest, "User is required")
		return
	}

	if err := a.Conversations.AddParticipant(id, req.User); err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// HandleRemoveUser serves DELETE /api/conversations/{id}/users/{userId}.
func (a *App) HandleRemoveUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	userID := r.PathValue("userId")

	if err := a.Conversations.RemoveParticipant(id, userID); err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// HandleUserConversations serves GET /api/users/{userId}/conversations.
func (a *App) HandleUserConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	a.writeJSON(w, http.StatusOK, map[string]any{
		"conversations": a.Conversations.ListForUser(userID),
	})
}

// HandleGetMessages serves GET /api/messages from the global store.
func (a *App) HandleGetMessages(w http.ResponseWriter, _ *http.Request) {
	messages, err := a.Messages.List()
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// HandlePostMessage serves POST /api/messages against the global store.
func (a *App) HandlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if !a.bind(w, r, &req) {
		return
	}
	if err := a.validate.Struct(req); err != nil {
		a.writeError(w, http.StatusBadRequest, "Message content is required")
		return
	}
	if req.Sender.ID == "" {
		a.writeError(w, http.StatusBadRequest, "Sender is required")
		return
	}

	message, err := chat.NewMessage(req.Content, req.Sender)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.Messages.Append(message); err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, map[string]any{"message": message})
}

// HandleClearMessages serves DELETE /api/messages, wiping the global store.
func (a *App) HandleClearMessages(w http.ResponseWriter, _ *http.Request) {
	if err := a.Messages.Clear(); err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// bind decodes the JSON request body into v, responding with a 400 on
// failure.
func (a *App) bind(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (a *App) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.Log.Warn("writing response", "error", err)
	}
}

func (a *App) writeError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps domain errors onto HTTP statuses.
func (a *App) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrNotFound):
		a.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chat.ErrValidation):
		a.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrUnavailable):
		a.writeError(w, http.StatusInternalServerError, "Message store unavailable")
	default:
		a.writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}
