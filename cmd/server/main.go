package main

import (
	"context"
	"log/slog"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/nfrund/huddle/internal/app"
	"github.com/nfrund/huddle/internal/config"
	"github.com/nfrund/huddle/internal/logging"
)

func main() {
	cfg := config.New()
	logging.New()

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to build application", "error", err)
		os.Exit(1)
	}
	if err := a.Start(ctx); err != nil {
		slog.Error("Failed to start application", "error", err)
		os.Exit(1)
	}

	go func() {
		slog.Info("Listening", "addr", cfg.GetServerAddr())
		if err := a.Serve(); err != nil {
			slog.Error("HTTP server stopped", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, cfg.GetShutdownTimeout(), map[string]gfshutdown.Operation{
		"huddle": func(ctx context.Context) error {
			slog.Info("Graceful shutdown initiated")
			return a.Shutdown(ctx)
		},
	})

	code := <-wait
	slog.Info("Server exited", "code", code)
	os.Exit(code)
}
