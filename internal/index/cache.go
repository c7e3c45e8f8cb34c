package index

import (
	"context"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/semsearch/internal/search"
	"github.com/Aman-CERP/semsearch/internal/store"
)

// DefaultMaxCorpora bounds the cache when no size is configured.
const DefaultMaxCorpora = 64

// cacheEntry holds a corpus and the engine derived from it. The engine is
// built on first query and discarded with the entry.
type cacheEntry struct {
	corpus *store.Corpus

	mu     sync.Mutex
	engine search.Engine
}

// Cache keeps recently used corpora in memory, bounded by an LRU.
// Evicting an entry only costs a reload; the store stays authoritative.
// Every lookup compares the entry's revision with the store's, so commits
// made by another process sharing the root are picked up on the next
// request.
//
// Callers serialize access per name (see keyedLocks); the cache itself
// only guards its map.
type Cache struct {
	store   store.Store
	build   search.Builder
	entries *lru.Cache[string, *cacheEntry]
}

// NewCache creates a cache over st. maxCorpora <= 0 uses DefaultMaxCorpora.
func NewCache(st store.Store, build search.Builder, maxCorpora int) (*Cache, error) {
	if maxCorpora <= 0 {
		maxCorpora = DefaultMaxCorpora
	}
	if build == nil {
		build = func(vectors [][]float32) search.Engine { return search.NewExactEngine(vectors) }
	}
	entries, err := lru.NewWithEvict(maxCorpora, func(name string, _ *cacheEntry) {
		slog.Debug("corpus evicted from cache", slog.String("index", name))
	})
	if err != nil {
		return nil, err
	}
	return &Cache{store: st, build: build, entries: entries}, nil
}

// GetOrLoad returns the cached corpus for name. On a miss it loads the
// persisted corpus, or caches a fresh empty one that is not yet persisted.
// The returned corpus is shared: callers must Clone before mutating.
func (c *Cache) GetOrLoad(ctx context.Context, name string) (*store.Corpus, error) {
	e, err := c.entry(ctx, name)
	if err != nil {
		return nil, err
	}
	return e.corpus, nil
}

func (c *Cache) entry(ctx context.Context, name string) (*cacheEntry, error) {
	if e, ok := c.entries.Get(name); ok {
		rev, err := c.store.Revision(ctx, name)
		if err != nil {
			return nil, err
		}
		if rev == e.corpus.Revision {
			return e, nil
		}
		slog.Debug("cached corpus is stale, reloading",
			slog.String("index", name),
			slog.String("cached", e.corpus.Revision),
			slog.String("current", rev))
	}

	exists, err := c.store.Exists(ctx, name)
	if err != nil {
		return nil, err
	}

	var corpus *store.Corpus
	if exists {
		corpus, err = c.store.Load(ctx, name)
		if err != nil {
			return nil, err
		}
	} else {
		corpus = store.NewCorpus(name)
		// A token without a group is left by an interrupted first commit.
		if corpus.Revision, err = c.store.Revision(ctx, name); err != nil {
			return nil, err
		}
	}

	e := &cacheEntry{corpus: corpus}
	c.entries.Add(name, e)
	return e, nil
}

// GetOrBuildEngine returns the engine for name, building it from the
// corpus vectors if needed, together with the corpus it was built from.
func (c *Cache) GetOrBuildEngine(ctx context.Context, name string) (search.Engine, *store.Corpus, error) {
	e, err := c.entry(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.engine == nil {
		e.engine = c.build(e.corpus.Vectors())
	}
	return e.engine, e.corpus, nil
}

// Put replaces the entry for name with a corpus just committed by the
// caller. Its engine is built on the next query.
func (c *Cache) Put(name string, corpus *store.Corpus) {
	c.entries.Add(name, &cacheEntry{corpus: corpus})
}

// Invalidate drops the corpus and engine for name. The next access reloads
// from the store.
func (c *Cache) Invalidate(name string) {
	c.entries.Remove(name)
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.entries.Purge()
}

// Contains reports whether name is cached, without touching recency.
func (c *Cache) Contains(name string) bool {
	return c.entries.Contains(name)
}

// Names returns cached corpus names, oldest first.
func (c *Cache) Names() []string {
	return c.entries.Keys()
}

// Len returns the number of cached corpora.
func (c *Cache) Len() int {
	return c.entries.Len()
}
