package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// StorageWatcher watches a storage root and its immediate subdirectories
// with fsnotify. Corpora are one level deep, so deeper directories are not
// watched.
type StorageWatcher struct {
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	events    chan []FileEvent
	errors    chan error
	stopCh    chan struct{}
	root      string

	mu             sync.RWMutex
	started        bool
	stopped        bool
	droppedBatches atomic.Uint64
}

var _ Watcher = (*StorageWatcher)(nil)

// NewStorageWatcher creates a watcher. It fails when the platform cannot
// provide fsnotify.
func NewStorageWatcher(opts Options) (*StorageWatcher, error) {
	opts = opts.WithDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &StorageWatcher{
		fsWatcher: fsw,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}, nil
}

// Start implements Watcher.
func (w *StorageWatcher) Start(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return fmt.Errorf("watcher is stopped")
	}
	if w.started {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}
	w.started = true
	w.root = abs
	w.mu.Unlock()

	if err := w.fsWatcher.Add(abs); err != nil {
		return fmt.Errorf("watch %s: %w", abs, err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return fmt.Errorf("read storage root: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() && !ignored(e.Name()) {
			w.watchDir(filepath.Join(abs, e.Name()))
		}
	}

	go w.forward(ctx)
	go w.loop(ctx)
	slog.Debug("storage watcher started", slog.String("root", abs))
	return nil
}

func (w *StorageWatcher) watchDir(path string) {
	if err := w.fsWatcher.Add(path); err != nil {
		w.emitError(fmt.Errorf("watch %s: %w", path, err))
	}
}

func (w *StorageWatcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.emitError(err)
		}
	}
}

// ignored reports whether any path element is a reserved entry.
func ignored(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}

func (w *StorageWatcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || rel == "." || ignored(rel) {
		return
	}

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
		if isDir && !strings.Contains(filepath.ToSlash(rel), "/") {
			w.watchDir(event.Name)
		}
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	w.debouncer.Add(FileEvent{
		Path:      rel,
		Operation: op,
		IsDir:     isDir,
		Timestamp: time.Now(),
	})
}

func (w *StorageWatcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.emitEvents(batch)
		}
	}
}

func (w *StorageWatcher) emitEvents(batch []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	select {
	case w.events <- batch:
	default:
		n := w.droppedBatches.Add(1)
		slog.Warn("event buffer full, dropping batch",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("total_dropped_batches", n))
	}
}

func (w *StorageWatcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// DroppedBatches returns the number of batches dropped on a full buffer.
func (w *StorageWatcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

// Stop implements Watcher.
func (w *StorageWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	err := w.fsWatcher.Close()
	close(w.events)
	close(w.errors)
	return err
}

// Events implements Watcher.
func (w *StorageWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors implements Watcher.
func (w *StorageWatcher) Errors() <-chan error {
	return w.errors
}
