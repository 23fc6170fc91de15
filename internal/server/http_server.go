package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// CreateServer configures an HTTP server with production timeout defaults.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartHub launches the hub event loop. Must be called before serving.
func (a *App) StartHub() {
	go a.Hub.Run()
	a.Log.Info("hub started")
}

// ShutdownServer drains the HTTP server, waiting for in-flight requests up
// to the timeout.
func ShutdownServer(server *http.Server, timeout time.Duration, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Warn("http server shutdown", "error", err)
		return err
	}
	log.Info("http server shutdown complete")
	return nil
}
