// Package watch monitors an evidence directory and batches change events
// so a scan refresh runs once per settled burst of writes, not once per
// syscall-level event.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kmorell/pfscan/pkg/config"
)

// Handler receives the settled paths of one debounced batch.
type Handler func(ctx context.Context, paths []string)

// Watcher wraps fsnotify with per-path debouncing.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	log         *slog.Logger
	dir         string
	extensions  []string
	handler     Handler
	debounceMap map[string]time.Time
	debounceDur time.Duration
	sweepEvery  time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats Stats
}

// Stats tracks watcher activity.
type Stats struct {
	EventsSeen    int
	Dispatches    int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// New creates a watcher over dir. Events for files outside the extension
// filter are dropped; an empty filter accepts everything.
func New(log *slog.Logger, dir string, extensions []string, handler Handler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	wc := config.DefaultWatchConfig()
	return &Watcher{
		watcher:     fsw,
		log:         log,
		dir:         dir,
		extensions:  extensions,
		handler:     handler,
		debounceMap: make(map[string]time.Time),
		debounceDur: wc.DebounceWindow,
		sweepEvery:  wc.SweepInterval,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in its own
// goroutine until Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	w.log.Info("Watching directory", "dir", w.dir)

	go w.run(ctx)
	return nil
}

// Stop shuts the event loop down and closes the underlying watcher.
// Safe to call whether or not Start succeeded, and more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}

	if err := w.watcher.Close(); err != nil {
		w.log.Warn("Failed to close watcher", "error", err)
	}
}

// IsWatching reports whether the event loop is running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// GetStats returns the current watcher statistics.
func (w *Watcher) GetStats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	sweep := time.NewTicker(w.sweepEvery)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("Watcher error", "error", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-sweep.C:
			w.dispatchSettled(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.matches(event.Name) {
		return
	}
	// Chmod-only events carry no content change worth rescanning.
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	w.stats.EventsSeen++
	w.stats.LastEventPath = event.Name
	w.stats.LastEventTime = time.Now()
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

// dispatchSettled hands every path quiet for a full debounce window to
// the handler as one batch.
func (w *Watcher) dispatchSettled(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	if len(settled) > 0 {
		w.stats.Dispatches++
	}
	w.mu.Unlock()

	if len(settled) > 0 {
		w.handler(ctx, settled)
	}
}

func (w *Watcher) matches(name string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range w.extensions {
		want = strings.ToLower(want)
		if !strings.HasPrefix(want, ".") {
			want = "." + want
		}
		if ext == want {
			return true
		}
	}
	return false
}
