package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
)

// WatchLevel re-reads LOG_LEVEL from envFile whenever the file is written and
// applies it. It returns nil without watching when envFile does not exist.
// The watcher stops when ctx is canceled.
func WatchLevel(ctx context.Context, envFile string) error {
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		slog.Debug("Env file does not exist, skipping log level watcher", "path", envFile)
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file system watcher: %w", err)
	}

	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(envFile)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", envFile, err)
	}

	go watchLevel(ctx, watcher, filepath.Clean(envFile))
	slog.Debug("Watching env file for log level changes", "path", envFile)
	return nil
}

func watchLevel(ctx context.Context, watcher *fsnotify.Watcher, envFile string) {
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != envFile {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				reloadLevel(envFile)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Log level watcher error", "error", err)
		}
	}
}

func reloadLevel(envFile string) {
	env, err := godotenv.Read(envFile)
	if err != nil {
		slog.Warn("Failed to re-read env file", "path", envFile, "error", err)
		return
	}
	l, ok := ParseLevel(env["LOG_LEVEL"])
	if !ok || l == Level() {
		return
	}
	SetLevel(l)
	slog.Info("Log level changed", "level", l.String())
}
