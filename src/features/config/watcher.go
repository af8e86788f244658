package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce absorbs the burst of events editors emit on save
const reloadDebounce = 500 * time.Millisecond

// Watch reloads path whenever it changes and swaps the config in m. An invalid
// file is logged and the previous config is kept. Returns when ctx is done.
func (m *Manager) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return err
	}
	// Watch the directory, editors often replace the file instead of writing to it
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}
	slog.Info("Watching configuration file", "path", absPath)

	go func() {
		defer watcher.Close()
		var (
			mu    sync.Mutex
			timer *time.Timer
		)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != absPath {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(reloadDebounce, func() { m.reload(absPath) })
				mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("Config watcher error", "error", err)

			case <-ctx.Done():
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				mu.Unlock()
				return
			}
		}
	}()
	return nil
}

func (m *Manager) reload(path string) {
	cfg, err := readFile(path)
	if err != nil {
		slog.Error("Ignoring invalid configuration change", "path", path, "error", err)
		return
	}
	m.Update(cfg)
	slog.Info("Configuration reloaded", "path", path)
}
