package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/semsearch/internal/embed"
	serrors "github.com/Aman-CERP/semsearch/internal/errors"
	"github.com/Aman-CERP/semsearch/internal/store"
)

// DocumentManager applies document mutations. Each mutation runs as one
// store.Update: the persisted corpus is read, changed and written under the
// exclusive lock shared with other processes, and the committed result
// replaces the cache entry. A failure at any step leaves both the cache and
// the store holding the previous state.
type DocumentManager struct {
	store    store.Store
	cache    *Cache
	embedder embed.Embedder
}

// NewDocumentManager wires a manager to its collaborators.
func NewDocumentManager(st store.Store, cache *Cache, embedder embed.Embedder) *DocumentManager {
	return &DocumentManager{store: st, cache: cache, embedder: embedder}
}

// AddOrUpdate embeds text and stores it under id, replacing any document
// with the same id. The corpus is created if it does not exist yet.
// A replaced document moves to the end of the insertion order.
func (m *DocumentManager) AddOrUpdate(ctx context.Context, name, id, text string) error {
	if id == "" {
		return serrors.MissingField("doc_id")
	}
	if text == "" {
		return serrors.MissingField("text")
	}

	// Embedding can be slow; it happens before the store lock is taken.
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return serrors.Wrap(serrors.ErrCodeEmbeddingFailed, fmt.Errorf("embed document %q: %w", id, err)).
			WithDetail("index", name)
	}
	if len(vec) == 0 {
		return serrors.New(serrors.ErrCodeEmbeddingFailed, "embedder returned an empty vector", nil).
			WithDetail("index", name)
	}

	var replaced bool
	next, err := m.store.Update(ctx, name, func(c *store.Corpus, _ bool) error {
		replaced = c.Has(id)
		others := c.Len()
		if replaced {
			others--
		}
		// Replacing the only document may change the dimension.
		if others > 0 && len(vec) != c.Dimension {
			return serrors.Newf(serrors.ErrCodeDimensionMismatch,
				"embedding has %d dimensions, index %q holds %d", len(vec), name, c.Dimension).
				WithDetail("index", name).
				WithSuggestion("Recreate the index after changing the embedding model")
		}
		c.Put(&store.Document{ID: id, Text: text, Vector: vec})
		c.Model = m.embedder.ModelName()
		return nil
	})
	if err != nil {
		return err
	}
	m.cache.Put(name, next)

	slog.Info("document stored",
		slog.String("index", name),
		slog.String("doc_id", id),
		slog.Bool("replaced", replaced),
		slog.Int("documents", next.Len()))
	return nil
}

// Remove deletes the document id and its vector.
func (m *DocumentManager) Remove(ctx context.Context, name, id string) error {
	if id == "" {
		return serrors.MissingField("doc_id")
	}

	next, err := m.store.Update(ctx, name, func(c *store.Corpus, exists bool) error {
		if !exists {
			return serrors.IndexNotFound(name)
		}
		if !c.Remove(id) {
			return serrors.DocumentNotFound(name, id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.cache.Put(name, next)

	slog.Info("document removed",
		slog.String("index", name),
		slog.String("doc_id", id),
		slog.Int("documents", next.Len()))
	return nil
}

// List returns document ids in insertion order, empty when there are none.
func (m *DocumentManager) List(ctx context.Context, name string) ([]string, error) {
	c, err := m.cache.GetOrLoad(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.IDs(), nil
}
