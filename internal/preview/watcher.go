// Package preview rebuilds documentation when sources change. Used by the
// CLI watch mode while authoring docs locally.
package preview

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docsforge/internal/logfields"
)

// DefaultDebounce coalesces editor save bursts into one rebuild.
const DefaultDebounce = 500 * time.Millisecond

// Watcher triggers a rebuild callback when watched files change.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	rebuild  func(ctx context.Context)
}

// NewWatcher creates a watcher calling rebuild after changes settle.
func NewWatcher(rebuild func(ctx context.Context), debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{watcher: fsw, debounce: debounce, rebuild: rebuild}, nil
}

// ignoredDir filters build output and VCS noise out of the watch set.
func ignoredDir(name string) bool {
	return name == ".git" || name == "_build" || name == "site" || name == "node_modules" ||
		(strings.HasPrefix(name, ".") && name != ".")
}

// Add registers a directory tree for watching.
func (w *Watcher) Add(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && ignoredDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// relevant filters events down to ones worth a rebuild.
func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	// Editor temp files.
	if strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") || strings.HasPrefix(base, ".#") {
		return false
	}
	return true
}

// Run watches until ctx is canceled. New directories are added to the watch
// set as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				// Best effort: new subdirectories join the watch set.
				_ = w.Add(event.Name)
			}
			slog.Debug("Change detected", logfields.Path(event.Name))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watch error", logfields.Error(err))

		case <-timerC:
			timer = nil
			timerC = nil
			w.rebuild(ctx)
		}
	}
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
