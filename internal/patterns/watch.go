package patterns

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"gopkg.in/fsnotify.v1"
)

// Watcher rebuilds the library whenever the extension file changes and hands
// the result to a callback. A reload that fails leaves the caller's current
// library in place.
type Watcher struct {
	path     string
	onReload func(*Library)
	logger   *slog.Logger

	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewWatcher prepares a watcher for path. Call Start to begin watching.
func NewWatcher(path string, onReload func(*Library), logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		path:     filepath.Clean(path),
		onReload: onReload,
		logger:   logger,
	}
}

// Start watches the directory holding the extension file. Editors commonly
// replace files by rename, so the directory is watched, not the file.
func (w *Watcher) Start() error {
	if w.path == "" || w.path == "." {
		return fmt.Errorf("no pattern file configured for watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching directory %s: %w", dir, err)
	}

	w.watcher = watcher
	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.stopChan:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.Reload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("pattern watcher error", "path", w.path, "err", err)
		}
	}
}

// Reload rebuilds the library from the file immediately. A removed file
// reloads the built-in catalog alone.
func (w *Watcher) Reload() {
	lib, err := NewFromFile(w.path)
	if err != nil {
		w.logger.Error("pattern reload failed, keeping previous library", "path", w.path, "err", err)
		return
	}
	w.logger.Info("patterns reloaded", "path", w.path, "patterns", lib.Len())
	if w.onReload != nil {
		w.onReload(lib)
	}
}

// Stop ends watching and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		if w.stopChan != nil {
			close(w.stopChan)
		}
		if w.watcher != nil {
			w.watcher.Close()
		}
		if w.done != nil {
			<-w.done
		}
	})
}
