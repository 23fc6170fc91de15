package server

import "net/http"

// Routes wires the REST boundary and the WebSocket endpoint into a ServeMux.
func (a *App) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", a.HandleHealth)
	mux.HandleFunc("GET /ws", a.ServeWS)

	mux.HandleFunc("GET /api/conversations", a.HandleListConversations)
	mux.HandleFunc("POST /api/conversations", a.HandleCreateConversation)
	mux.HandleFunc("GET /api/conversations/{id}", a.HandleGetConversation)
	mux.HandleFunc("POST /api/conversations/{id}/messages", a.HandleConversationMessage)
	mux.HandleFunc("POST /api/conversations/{id}/users", a.HandleAddUser)
	mux.HandleFunc("DELETE /api/conversations/{id}/users/{userId}", a.HandleRemoveUser)
	mux.HandleFunc("GET /api/users/{userId}/conversations", a.HandleUserConversations)

	mux.HandleFunc("GET /api/messages", a.HandleGetMessages)
	mux.HandleFunc("POST /api/messages", a.HandlePostMessage)
	mux.HandleFunc("DELETE /api/messages", a.HandleClearMessages)

	return mux
}
