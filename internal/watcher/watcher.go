// Package watcher reports debounced changes to individual files.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/widgetsync/internal/errors"
	"github.com/conneroisu/widgetsync/internal/logging"
)

// DefaultDelay groups the burst of events one editor save produces.
const DefaultDelay = 200 * time.Millisecond

// FileWatcher watches a set of files. The parent directories are watched
// so that saves done by rename are still seen.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	logger    logging.Logger
	handlers  []ChangeHandler
	files     map[string]bool
	mutex     sync.RWMutex
}

// ChangeEvent is one file change.
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
}

type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// ChangeHandler handles one debounced batch of changes.
type ChangeHandler func(events []ChangeEvent) error

// Debouncer groups rapid changes and keeps the last event per path.
type Debouncer struct {
	delay   time.Duration
	output  chan []ChangeEvent
	timer   *time.Timer
	pending map[string]ChangeEvent
	mutex   sync.Mutex
}

// NewFileWatcher creates a watcher. A zero delay means DefaultDelay.
func NewFileWatcher(delay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.NewInternalError("ERR_WATCHER", "creating file watcher", err)
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &FileWatcher{
		watcher: w,
		debouncer: &Debouncer{
			delay:   delay,
			output:  make(chan []ChangeEvent, 10),
			pending: make(map[string]ChangeEvent),
		},
		logger: logger.WithComponent("watcher"),
		files:  make(map[string]bool),
	}, nil
}

// AddHandler registers a handler for change batches.
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddFile starts watching path. The file itself need not exist yet.
func (fw *FileWatcher) AddFile(path string) error {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return errors.NewInternalError("ERR_WATCHER", "resolving "+path, err)
	}

	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	if fw.files[abs] {
		return nil
	}
	if err := fw.watcher.Add(filepath.Dir(abs)); err != nil {
		return errors.NewInternalError("ERR_WATCHER", "watching "+path, err)
	}
	fw.files[abs] = true
	return nil
}

// Files lists the watched files.
func (fw *FileWatcher) Files() []string {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()

	out := make([]string, 0, len(fw.files))
	for f := range fw.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Run dispatches change batches until ctx ends, then releases the
// watcher.
func (fw *FileWatcher) Run(ctx context.Context) error {
	defer fw.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			fw.handleFsnotifyEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			fw.logger.Warn(ctx, err, "File watcher error")

		case events := <-fw.debouncer.output:
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(events); err != nil {
					fw.logger.Warn(ctx, err, "File watcher handler failed")
				}
			}
		}
	}
}

// Close releases the watcher without running it.
func (fw *FileWatcher) Close() error {
	fw.stop()
	return nil
}

func (fw *FileWatcher) stop() {
	fw.debouncer.mutex.Lock()
	if fw.debouncer.timer != nil {
		fw.debouncer.timer.Stop()
	}
	fw.debouncer.mutex.Unlock()

	_ = fw.watcher.Close()
}

func (fw *FileWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}

	fw.mutex.RLock()
	watched := fw.files[abs]
	fw.mutex.RUnlock()
	if !watched || event.Op == fsnotify.Chmod {
		return
	}

	var eventType EventType
	switch {
	case event.Has(fsnotify.Create):
		eventType = EventTypeCreated
	case event.Has(fsnotify.Write):
		eventType = EventTypeModified
	case event.Has(fsnotify.Remove):
		eventType = EventTypeDeleted
	case event.Has(fsnotify.Rename):
		eventType = EventTypeRenamed
	}

	var modTime time.Time
	if info, err := os.Stat(abs); err == nil {
		modTime = info.ModTime()
	}

	fw.debouncer.add(ChangeEvent{Type: eventType, Path: abs, ModTime: modTime})
}

func (d *Debouncer) add(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending[event.Path] = event
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}

	events := make([]ChangeEvent, 0, len(d.pending))
	for _, event := range d.pending {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })

	select {
	case d.output <- events:
		clear(d.pending)
	default:
		// Output full; keep pending for the next flush.
	}
}
