package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Aman-CERP/semsearch/internal/store"
	"github.com/Aman-CERP/semsearch/internal/watcher"
)

// Invalidator drops cached state for a corpus name.
type Invalidator interface {
	Invalidate(name string)
}

// Coordinator turns storage watcher events into cache invalidations, so
// changes made by other processes become visible on the next request.
type Coordinator struct {
	target Invalidator
}

// NewCoordinator creates a coordinator that invalidates entries of target.
func NewCoordinator(target Invalidator) *Coordinator {
	return &Coordinator{target: target}
}

// HandleEvents invalidates every corpus touched by events and returns the
// affected names, sorted.
func (c *Coordinator) HandleEvents(events []watcher.FileEvent) []string {
	touched := make(map[string]struct{})
	for _, event := range events {
		name, ok := corpusOf(event.Path)
		if !ok {
			continue
		}
		slog.Debug("storage event",
			slog.String("path", event.Path),
			slog.String("operation", event.Operation.String()),
			slog.String("index", name))
		touched[name] = struct{}{}
	}

	names := make([]string, 0, len(touched))
	for name := range touched {
		c.target.Invalidate(name)
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run consumes batches from w until ctx is done or the event channel closes.
func (c *Coordinator) Run(ctx context.Context, w watcher.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.Events():
			if !ok {
				return
			}
			if names := c.HandleEvents(batch); len(names) > 0 {
				slog.Info("cache invalidated by storage change", slog.Any("indexes", names))
			}
		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			slog.Warn("storage watcher error", slog.String("error", err.Error()))
		}
	}
}

// corpusOf maps a path relative to the storage root to its corpus name.
// Reserved entries and invalid names yield false.
func corpusOf(relPath string) (string, bool) {
	relPath = filepath.ToSlash(filepath.Clean(relPath))
	if relPath == "." || relPath == "" {
		return "", false
	}
	name, _, _ := strings.Cut(relPath, "/")
	if strings.HasPrefix(name, ".") || store.ValidateName(name) != nil {
		return "", false
	}
	return name, true
}
