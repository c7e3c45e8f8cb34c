// Package index implements the corpus operations on top of the store, the
// in-memory cache and the embedding provider.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/semsearch/internal/config"
	"github.com/Aman-CERP/semsearch/internal/embed"
	serrors "github.com/Aman-CERP/semsearch/internal/errors"
	"github.com/Aman-CERP/semsearch/internal/search"
	"github.com/Aman-CERP/semsearch/internal/store"
)

// Status describes a running service.
type Status struct {
	Model         string   `json:"model"`
	Dimensions    int      `json:"dimensions"`
	Backend       string   `json:"backend"`
	StorageRoot   string   `json:"storage_root"`
	Engine        string   `json:"engine"`
	Indexes       int      `json:"indexes"`
	CachedIndexes []string `json:"cached_indexes"`
}

// Service exposes the seven corpus operations. One instance owns its store,
// cache and embedder; it is passed explicitly to transports.
//
// Mutations of a name take its exclusive lock and reads its shared lock, so
// concurrent callers are safe and distinct names never block each other.
type Service struct {
	cfg      *config.Config
	store    store.Store
	embedder embed.Embedder
	cache    *Cache
	docs     *DocumentManager
	query    *QueryEngine
	locks    *keyedLocks
}

// NewService assembles a service from an open store and embedder.
func NewService(cfg *config.Config, st store.Store, embedder embed.Embedder) (*Service, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	cache, err := NewCache(st, search.NewBuilder(cfg.Search), cfg.Cache.MaxCorpora)
	if err != nil {
		return nil, fmt.Errorf("failed to create index cache: %w", err)
	}
	return &Service{
		cfg:      cfg,
		store:    st,
		embedder: embedder,
		cache:    cache,
		docs:     NewDocumentManager(st, cache, embedder),
		query:    NewQueryEngine(cache, embedder, cfg.Search.TopK, cfg.Search.MaxTopK),
		locks:    newKeyedLocks(),
	}, nil
}

// Open creates the store and embedder described by cfg and returns a
// service owning both.
func Open(ctx context.Context, cfg *config.Config) (*Service, error) {
	st, err := store.New(cfg.Storage.Root, cfg.Storage.Backend)
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrCodeStorageFailed, err)
	}

	embedder, err := embed.NewEmbedder(ctx, embed.Options{
		Provider:   embed.ProviderType(cfg.Embeddings.Provider),
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		OllamaHost: cfg.Embeddings.OllamaHost,
		Timeout:    cfg.EmbeddingTimeout(),
		CacheSize:  cfg.Embeddings.CacheSize,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	svc, err := NewService(cfg, st, embedder)
	if err != nil {
		_ = embedder.Close()
		_ = st.Close()
		return nil, err
	}
	slog.Info("index service ready",
		slog.String("storage_root", st.Root()),
		slog.String("backend", st.Backend()),
		slog.String("model", embedder.ModelName()),
		slog.String("engine", cfg.Search.Engine))
	return svc, nil
}

// Close releases the embedder and store.
func (s *Service) Close() error {
	s.cache.Purge()
	return errors.Join(s.embedder.Close(), s.store.Close())
}

// Store returns the underlying store.
func (s *Service) Store() store.Store { return s.store }

// CreateIndex persists a new empty corpus.
func (s *Service) CreateIndex(ctx context.Context, name string) error {
	if err := store.ValidateName(name); err != nil {
		return err
	}
	unlock := s.locks.Lock(name)
	defer unlock()

	if err := s.store.Create(ctx, name); err != nil {
		return err
	}
	// A cached empty corpus for this name was never persisted; drop it.
	s.cache.Invalidate(name)
	slog.Info("index created", slog.String("index", name))
	return nil
}

// DeleteIndex removes a corpus from the cache and the store.
func (s *Service) DeleteIndex(ctx context.Context, name string) error {
	if err := store.ValidateName(name); err != nil {
		return err
	}
	unlock := s.locks.Lock(name)
	defer unlock()

	s.cache.Invalidate(name)
	if err := s.store.Delete(ctx, name); err != nil {
		return err
	}
	slog.Info("index deleted", slog.String("index", name))
	return nil
}

// ListIndexes returns the names of persisted corpora, sorted.
func (s *Service) ListIndexes(ctx context.Context) ([]string, error) {
	return s.store.List(ctx)
}

// AddDocument embeds and stores a document, creating the corpus if needed.
func (s *Service) AddDocument(ctx context.Context, name, id, text string) error {
	if err := store.ValidateName(name); err != nil {
		return err
	}
	unlock := s.locks.Lock(name)
	defer unlock()
	return s.docs.AddOrUpdate(ctx, name, id, text)
}

// RemoveDocument deletes a document and its vector.
func (s *Service) RemoveDocument(ctx context.Context, name, id string) error {
	if err := store.ValidateName(name); err != nil {
		return err
	}
	unlock := s.locks.Lock(name)
	defer unlock()
	return s.docs.Remove(ctx, name, id)
}

// ListDocuments returns document ids in insertion order.
func (s *Service) ListDocuments(ctx context.Context, name string) ([]string, error) {
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}
	unlock := s.locks.RLock(name)
	defer unlock()
	return s.docs.List(ctx, name)
}

// Query ranks the documents of name against text. topK <= 0 uses the
// configured default.
func (s *Service) Query(ctx context.Context, name, text string, topK int) (*QueryResponse, error) {
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}
	unlock := s.locks.RLock(name)
	defer unlock()

	start := time.Now()
	resp, err := s.query.Query(ctx, name, text, topK)
	if err != nil {
		return nil, err
	}
	slog.Debug("query answered",
		slog.String("index", name),
		slog.Int("results", len(resp.Results)),
		slog.Duration("duration", time.Since(start)))
	return resp, nil
}

// Invalidate drops the cached state of name so the next request reloads it.
// Used when another process changes the store.
func (s *Service) Invalidate(name string) {
	unlock := s.locks.Lock(name)
	defer unlock()
	s.cache.Invalidate(name)
}

// Status reports the service configuration and cache contents.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	names, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	cached := s.cache.Names()
	if cached == nil {
		cached = []string{}
	}
	return &Status{
		Model:         s.embedder.ModelName(),
		Dimensions:    s.embedder.Dimensions(),
		Backend:       s.store.Backend(),
		StorageRoot:   s.store.Root(),
		Engine:        s.cfg.Search.Engine,
		Indexes:       len(names),
		CachedIndexes: cached,
	}, nil
}
