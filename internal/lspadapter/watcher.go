package lspadapter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wdl-platform/corewdl/internal/logging"
)

// Watcher translates filesystem change events for *.wdl files into
// DidChangeWatchedFiles calls, debounced the same way teacher's
// internal/core/mangle_watcher.go batches rapid saves before acting on
// them, substituting fsnotify's own directories for the teacher's single
// fixed .nerd/mangle path.
type Watcher struct {
	mu      sync.Mutex
	adapter *Adapter
	fsw     *fsnotify.Watcher
	pending map[string]time.Time
	debounce time.Duration
	stop    chan struct{}
	done    chan struct{}
}

// NewWatcher constructs a Watcher over adapter. Call AddDir for every root
// directory to watch, then Start.
func NewWatcher(adapter *Adapter) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		adapter:  adapter,
		fsw:      fsw,
		pending:  make(map[string]time.Time),
		debounce: 300 * time.Millisecond,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// AddDir registers dir (recursively) with the underlying fsnotify watcher.
func (w *Watcher) AddDir(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				logging.Get(logging.CategoryLSP).Warn("watcher: failed to add %s: %v", path, err)
			}
		}
		return nil
	})
}

// Start begins the debounced event loop in its own goroutine.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop shuts the watcher down and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
	_ = w.fsw.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryLSP).Error("watcher error: %v", err)
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !strings.HasSuffix(ev.Name, ".wdl") {
		return
	}
	w.mu.Lock()
	w.pending[ev.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		uri := "file://" + path
		if err := w.adapter.DidChangeWatchedFiles(ctx, uri); err != nil {
			logging.Get(logging.CategoryLSP).Warn("watcher: notify failed for %s: %v", uri, err)
		}
	}
}
