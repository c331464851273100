package main

import (
	"context"
	"log/slog"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/Tyrowin/roomchat/internal/server"
	"github.com/Tyrowin/roomchat/internal/store"
)

func main() {
	cfg := server.NewConfigFromEnv().Sanitized()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))
	slog.Info("starting room chat server", "port", cfg.Port, "store", cfg.Store.Driver)
	if cfg.Rooms.StealthPassword != "" {
		slog.Warn("stealth joins enabled")
	}

	backend, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		slog.Error("open store", "driver", cfg.Store.Driver, "path", cfg.Store.Path, "err", err)
		os.Exit(1)
	}

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	restored, err := backend.Load(loadCtx)
	cancelLoad()
	if err != nil {
		// Start empty rather than refuse to serve; the next save overwrites.
		slog.Error("load rooms; starting with the default room only", "err", err)
		restored = nil
	}

	writer := store.NewWriter(backend, slog.Default().With("component", "store"))
	hub := server.NewHub(cfg, writer, restored)

	ctx, cancel := context.WithCancel(context.Background())
	server.StartHub(ctx, hub)

	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(hub))
	go func() {
		if err := server.StartServer(httpServer); err != nil {
			slog.Error("http server stopped", "err", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"chat-server": func(ctx context.Context) error {
				slog.Info("graceful shutdown initiated")
				cancel()
				if err := server.ShutdownServer(ctx, httpServer, hub); err != nil {
					slog.Error("server shutdown", "err", err)
				}
				return writer.Close(ctx)
			},
		},
	)

	exitCode := <-wait
	slog.Info("server exited", "code", exitCode)
	os.Exit(exitCode)
}
