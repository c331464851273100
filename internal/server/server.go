// Package server provides HTTP server configuration and lifecycle management
// for the chat relay.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// CreateServer creates and configures the HTTP server with security settings
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// StartHub launches the hub loop and the idle reaper. The reaper stops when
// ctx is cancelled.
func StartHub(ctx context.Context, hub *Hub) {
	go hub.Run()
	go NewReaper(hub, hub.cfg.Rooms.ReapInterval).Run(ctx)
}

// StartServer starts the HTTP server and blocks until it exits. A server
// closed by Shutdown returns nil.
func StartServer(server *http.Server) error {
	slog.Info("server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownServer stops accepting HTTP requests, then stops the hub, which
// closes every client and hands the final room snapshot to its persister.
// The hub is stopped even if the HTTP shutdown fails.
func ShutdownServer(ctx context.Context, server *http.Server, hub *Hub) error {
	slog.Info("shutting down http server")
	httpErr := server.Shutdown(ctx)
	if httpErr != nil {
		slog.Error("http server shutdown", "err", httpErr)
	}

	timeout := hub.cfg.ShutdownTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	return errors.Join(httpErr, hub.Shutdown(timeout))
}
