package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/protocol"
	"github.com/parley-chat/parley/internal/store"
)

// App bundles the shared state of the service: configuration, the hub, the
// conversation registry, and the global message store. One App is built at
// process start and passed by reference to every handler; there is no
// package-level singleton.
type App struct {
	Config        *Config
	Log           *slog.Logger
	Hub           *Hub
	Conversations *chat.Registry
	Messages      store.Store

	validate *validator.Validate
	upgrader websocket.Upgrader
}

// NewApp builds the application context from the configuration. The message
// store backend is chosen here, once; everything downstream sees only the
// Store interface.
func NewApp(cfg *Config, log *slog.Logger) (*App, error) {
	messages, err := newStore(cfg, log)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:        cfg,
		Log:           log,
		Hub:           NewHub(log),
		Conversations: chat.NewRegistry(),
		Messages:      messages,
		validate:      validator.New(),
	}
	app.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if cfg.originAllowed(r) {
				return true
			}
			log.Warn("blocked websocket origin", "origin", r.Header.Get("Origin"))
			return false
		},
	}

	// In global mode every connection gets the full history right away.
	// Conversation mode defers history until a join.
	if cfg.Mode == ModeGlobal {
		app.Hub.greet = func(*Client) []byte {
			history, err := messages.List()
			if err != nil {
				log.Warn("loading history for new connection", "error", err)
				return protocol.Error("failed to load message history")
			}
			return protocol.MessageHistory(history)
		}
	}

	return app, nil
}

func newStore(cfg *Config, log *slog.Logger) (store.Store, error) {
	switch cfg.Backend {
	case BackendBadger:
		return store.OpenBadger(cfg.BadgerPath, log)
	case BackendMemory:
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// Close releases resources held by the app, such as the on-disk store.
func (a *App) Close() error {
	if closer, ok := a.Messages.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
