package app

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/justyntemme/solstice/internal/debug"
	"github.com/justyntemme/solstice/internal/events"
	"github.com/justyntemme/solstice/internal/logging"
)

// DirectoryWatcher watches directories and reports debounced changes, both
// on its Notify channel and as dir-changed events.
type DirectoryWatcher struct {
	watcher    *fsnotify.Watcher
	mu         sync.Mutex
	watching   map[string]bool // Currently watched paths
	notify     chan string     // Changed directory paths
	done       chan struct{}   // Shutdown signal
	closeOnce  sync.Once
	debounceMs int
	events     events.Publisher
}

// NewDirectoryWatcher creates a watcher. pub may be nil.
func NewDirectoryWatcher(debounceMs int, pub events.Publisher) (*DirectoryWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounceMs <= 0 {
		debounceMs = 200
	}
	if pub == nil {
		pub = events.Nop{}
	}

	dw := &DirectoryWatcher{
		watcher:    w,
		watching:   make(map[string]bool),
		notify:     make(chan string, 10),
		done:       make(chan struct{}),
		debounceMs: debounceMs,
		events:     pub,
	}

	go dw.run()
	return dw, nil
}

// run processes filesystem events with debouncing
func (dw *DirectoryWatcher) run() {
	lastEvent := make(map[string]time.Time)
	pending := make(map[string]bool)
	debounce := time.Duration(dw.debounceMs) * time.Millisecond
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case <-dw.done:
			return

		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			if !(event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Write)) {
				continue
			}

			// fsnotify reports the changed child; map it back to the watched directory
			changedPath := event.Name
			parentDir := filepath.Dir(changedPath)

			dw.mu.Lock()
			switch {
			case dw.watching[parentDir]:
				lastEvent[parentDir] = time.Now()
				pending[parentDir] = true
				debug.Log(debug.APP, "fsnotify: %s on %s (parent: %s)", event.Op, changedPath, parentDir)
			case dw.watching[changedPath]:
				lastEvent[changedPath] = time.Now()
				pending[changedPath] = true
				debug.Log(debug.APP, "fsnotify: %s on watched dir %s", event.Op, changedPath)
			}
			dw.mu.Unlock()

		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("watcher: fsnotify error", zap.Error(err))

		case <-ticker.C:
			now := time.Now()
			for dir := range pending {
				if now.Sub(lastEvent[dir]) < debounce {
					continue
				}
				select {
				case dw.notify <- dir:
				default:
					// Channel full, the event below still goes out
				}
				dw.events.Publish(events.Event{Type: events.DirChanged, Path: dir})
				debug.Log(debug.APP, "directory changed: %s", dir)
				delete(pending, dir)
				delete(lastEvent, dir)
			}
		}
	}
}

// Watch adds a directory to the watch list
func (dw *DirectoryWatcher) Watch(path string) error {
	path = filepath.Clean(path)
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.watching[path] {
		return nil
	}
	if err := dw.watcher.Add(path); err != nil {
		return err
	}
	dw.watching[path] = true
	debug.Log(debug.APP, "watching %s", path)
	return nil
}

// Unwatch removes a directory from the watch list
func (dw *DirectoryWatcher) Unwatch(path string) error {
	path = filepath.Clean(path)
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if !dw.watching[path] {
		return nil
	}
	if err := dw.watcher.Remove(path); err != nil {
		// The path may already be gone
		debug.Log(debug.APP, "unwatch %s: %v", path, err)
	}
	delete(dw.watching, path)
	return nil
}

// UnwatchAll removes all directories from the watch list
func (dw *DirectoryWatcher) UnwatchAll() {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	for path := range dw.watching {
		dw.watcher.Remove(path)
	}
	dw.watching = make(map[string]bool)
}

// Watched lists the directories currently watched.
func (dw *DirectoryWatcher) Watched() []string {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	out := make([]string, 0, len(dw.watching))
	for p := range dw.watching {
		out = append(out, p)
	}
	return out
}

// Notify returns the channel that receives directory change notifications
func (dw *DirectoryWatcher) Notify() <-chan string {
	return dw.notify
}

// Close shuts down the watcher
func (dw *DirectoryWatcher) Close() error {
	var err error
	dw.closeOnce.Do(func() {
		close(dw.done)
		err = dw.watcher.Close()
	})
	return err
}
