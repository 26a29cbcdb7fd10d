// Package watch monitors a build context and triggers rebuilds on change.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/buildflow/buildflow/pkg/errors"
)

// Watcher monitors a build context directory for changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration

	// OnChange is invoked, debounced, after files in the context change.
	OnChange func(path string) error

	// OnError is invoked for watch errors and failed rebuilds.
	OnError func(path string, err error)
}

// NewWatcher creates a new context watcher.
func NewWatcher(debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeWatchFailed, "failed to create watcher")
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		watcher:  fsWatcher,
		debounce: debounce,
	}, nil
}

// Watch registers the context directory and its subdirectories.
// Hidden directories and .git are skipped; builders ignore them too.
func (w *Watcher) Watch(contextDir string) error {
	abs, err := filepath.Abs(contextDir)
	if err != nil {
		return errors.Wrap(err, errors.CodeWatchFailed, "failed to resolve context path")
	}

	return w.addTree(abs)
}

// addTree registers a directory and its subdirectories.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (name == ".git" || strings.HasPrefix(name, ".")) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return errors.Wrap(err, errors.CodeWatchFailed, "failed to watch directory").
				WithContext("path", path)
		}
		return nil
	})
}

// maybeWatchNewDir extends the watch to directories created after the
// initial walk; fsnotify itself is non-recursive.
func (w *Watcher) maybeWatchNewDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.addTree(path); err != nil && w.OnError != nil {
		w.OnError(path, err)
	}
}

// Run starts the watch loop. Blocks until context is cancelled.
// Changes are debounced so one save burst triggers one rebuild.
func (w *Watcher) Run(ctx context.Context) error {
	var timerMu sync.Mutex
	var pending *time.Timer

	for {
		select {
		case <-ctx.Done():
			w.watcher.Close()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}

			// Only handle content-level events
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if isIgnored(event.Name) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				w.maybeWatchNewDir(event.Name)
			}

			changed := event.Name
			timerMu.Lock()
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(w.debounce, func() {
				w.handleChange(changed)
			})
			timerMu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if w.OnError != nil {
				w.OnError("", err)
			}
		}
	}
}

func (w *Watcher) handleChange(path string) {
	if w.OnChange == nil {
		return
	}
	if err := w.OnChange(path); err != nil {
		if w.OnError != nil {
			w.OnError(path, err)
		}
	}
}

// isIgnored filters editor noise and VCS internals.
func isIgnored(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") && base != ".dockerignore" {
		return true
	}
	if strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".git" {
			return true
		}
	}
	// Stat failures mean the file vanished mid-save; the next event wins.
	if _, err := os.Stat(path); err != nil && !os.IsNotExist(err) {
		return true
	}
	return false
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
