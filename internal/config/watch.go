package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce absorbs the burst of events editors emit on a single save.
const debounce = 200 * time.Millisecond

// Watch monitors the config file and calls onChange with the freshly loaded
// Config after each successful reload. It watches the parent directory rather
// than the file itself, so atomic saves (write to temp, rename over) are
// picked up without losing the watch. Runs until ctx is cancelled.
//
// A reload that fails validation is logged and skipped; the running config
// stays in effect and onChange is not called.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	var pending *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if pending == nil {
				pending = time.NewTimer(debounce)
			} else {
				pending.Reset(debounce)
			}
			fire = pending.C

		case <-fire:
			fire = nil
			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", path, "err", err)
				continue
			}
			slog.Info("config: reloaded", "path", path)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
