// Package watcher provides recursive filesystem watching used by watch
// mode to trigger re-verification when an archive tree changes.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/preserv/pkg/preserv/logging"
)

// Watcher watches an archive tree for filesystem changes. Watches are
// maintained recursively: directories created under a watched root are
// picked up, and removed directories are dropped.
type Watcher struct {
	watcher *fsnotify.Watcher
	paths   map[string]bool
	mu      sync.RWMutex
	closed  bool
}

// New creates a new Watcher.
func New() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher: fsw,
		paths:   make(map[string]bool),
	}, nil
}

// Watch starts watching a path recursively.
// It adds watches to the root directory and all subdirectories.
// Symlinks are not followed to avoid loops.
func (w *Watcher) Watch(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	info, err := os.Lstat(absRoot)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return nil // Only watch directories
	}

	return filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // Skip entries with errors
		}

		// Skip symlinks to avoid loops
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if d.IsDir() {
			return w.addWatch(path)
		}

		return nil
	})
}

// addWatch adds a single directory to the watch list.
func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	if w.paths[path] {
		return nil
	}

	if err := w.watcher.Add(path); err != nil {
		logging.Get("watcher").Warn("failed to add watch", "path", path, "error", err)
		return err
	}

	w.paths[path] = true
	return nil
}

// Run starts the event loop. It blocks until the context is cancelled.
// The onChange callback is called for each filesystem event with the
// path and operation.
func (w *Watcher) Run(ctx context.Context, onChange func(path string, op fsnotify.Op)) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			w.handleEvent(event, onChange)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get("watcher").Error("watcher error", "error", err)
		}
	}
}

// handleEvent maintains the recursive watch set for one event, then
// forwards it to the callback.
func (w *Watcher) handleEvent(event fsnotify.Event, onChange func(path string, op fsnotify.Op)) {
	switch {
	case event.Op&fsnotify.Create != 0:
		w.handleCreate(event.Name)
	case event.Op&fsnotify.Remove != 0:
		w.handleRemove(event.Name)
	case event.Op&fsnotify.Rename != 0:
		// Rename is treated as a remove - the new name will trigger a create
		w.handleRemove(event.Name)
	}

	if onChange != nil {
		onChange(event.Name, event.Op)
	}
}

// handleCreate adds watches for newly created directories, including
// any subtree created in one operation.
func (w *Watcher) handleCreate(path string) {
	info, err := os.Lstat(path)
	if err != nil {
		return // File might have been deleted already
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		return
	}

	if !info.IsDir() {
		return
	}

	_ = w.addWatch(path)

	_ = filepath.WalkDir(path, func(subpath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // Skip entries with errors
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() && subpath != path {
			_ = w.addWatch(subpath)
		}
		return nil
	})
}

// handleRemove drops watches for a removed directory and its children.
func (w *Watcher) handleRemove(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.paths[path] {
		_ = w.watcher.Remove(path)
		delete(w.paths, path)
	}

	for childPath := range w.paths {
		if isSubPath(childPath, path) {
			_ = w.watcher.Remove(childPath)
			delete(w.paths, childPath)
		}
	}
}

// Close closes the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	w.paths = make(map[string]bool)
	return w.watcher.Close()
}

// isSubPath checks if path is under parent directory.
func isSubPath(path, parent string) bool {
	return len(path) > len(parent) && path[:len(parent)+1] == parent+string(filepath.Separator)
}
