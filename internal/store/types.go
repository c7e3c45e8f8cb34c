// Package store persists named corpora under a storage root.
//
// Each corpus is one directory (an artifact group) below the root. Hidden
// entries (names starting with ".") are reserved for staging, trash and
// lock files and are never reported as corpora.
package store

import (
	"context"
	"slices"
	"time"
)

// Document is one entry of a corpus.
type Document struct {
	ID     string
	Text   string
	Vector []float32
}

// Corpus is the in-memory state of a named collection. Documents keep their
// insertion order, which breaks ranking ties.
type Corpus struct {
	Name string
	// Dimension is the vector length shared by every document, 0 while empty.
	Dimension int
	// Model names the embedder that produced the vectors.
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
	// Revision identifies the commit this corpus was read from or written
	// as. It is not persisted and is "" for a corpus never written.
	Revision string

	docs []*Document
	pos  map[string]int
}

// NewCorpus returns an empty corpus.
func NewCorpus(name string) *Corpus {
	now := time.Now().UTC()
	return &Corpus{
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		pos:       make(map[string]int),
	}
}

// Len returns the number of documents.
func (c *Corpus) Len() int {
	return len(c.docs)
}

// Get returns the document with id.
func (c *Corpus) Get(id string) (*Document, bool) {
	i, ok := c.pos[id]
	if !ok {
		return nil, false
	}
	return c.docs[i], true
}

// Has reports whether a document with id exists.
func (c *Corpus) Has(id string) bool {
	_, ok := c.pos[id]
	return ok
}

// IDs returns document ids in insertion order. Never nil.
func (c *Corpus) IDs() []string {
	ids := make([]string, len(c.docs))
	for i, d := range c.docs {
		ids[i] = d.ID
	}
	return ids
}

// Documents returns the documents in insertion order. The slice is a copy;
// the documents are shared and must not be modified.
func (c *Corpus) Documents() []*Document {
	return slices.Clone(c.docs)
}

// Vectors returns the vectors in insertion order.
func (c *Corpus) Vectors() [][]float32 {
	vecs := make([][]float32, len(c.docs))
	for i, d := range c.docs {
		vecs[i] = d.Vector
	}
	return vecs
}

// Put appends doc, first removing any document with the same id so exactly
// one entry per id survives. The caller checks the dimension.
func (c *Corpus) Put(doc *Document) {
	c.Remove(doc.ID)
	if len(c.docs) == 0 {
		c.Dimension = len(doc.Vector)
	}
	c.pos[doc.ID] = len(c.docs)
	c.docs = append(c.docs, doc)
}

// Remove deletes the document with id and its vector. Removing the last
// document clears the dimension.
func (c *Corpus) Remove(id string) bool {
	i, ok := c.pos[id]
	if !ok {
		return false
	}
	c.docs = slices.Delete(c.docs, i, i+1)
	delete(c.pos, id)
	for j := i; j < len(c.docs); j++ {
		c.pos[c.docs[j].ID] = j
	}
	if len(c.docs) == 0 {
		c.Dimension = 0
	}
	return true
}

// Clone returns a copy whose document list can be mutated independently.
// Documents themselves are immutable once added and are shared.
func (c *Corpus) Clone() *Corpus {
	out := *c
	out.docs = slices.Clone(c.docs)
	out.pos = make(map[string]int, len(c.pos))
	for id, i := range c.pos {
		out.pos[id] = i
	}
	return &out
}

// Store persists corpora by name.
type Store interface {
	// Create writes an empty corpus. ConflictError if name already exists.
	Create(ctx context.Context, name string) error

	// Exists reports whether name is persisted, without loading it.
	Exists(ctx context.Context, name string) (bool, error)

	// Load reads a persisted corpus. NotFoundError if absent.
	Load(ctx context.Context, name string) (*Corpus, error)

	// Persist atomically replaces the stored state of c, creating the
	// artifact group if it does not exist yet.
	Persist(ctx context.Context, c *Corpus) error

	// Update applies fn to the persisted state of name, or to a new empty
	// corpus when exists is false, and persists the result atomically.
	// The read and the write happen under one exclusive lock shared with
	// other processes. An error from fn is returned and nothing is written.
	Update(ctx context.Context, name string, fn func(c *Corpus, exists bool) error) (*Corpus, error)

	// Revision returns a token that changes on every commit to name, "" if
	// name has no committed state. It is cheap enough to call per request.
	Revision(ctx context.Context, name string) (string, error)

	// Delete removes every artifact of name. NotFoundError if absent.
	Delete(ctx context.Context, name string) error

	// List returns the names of all persisted corpora, sorted.
	List(ctx context.Context) ([]string, error)

	// Root returns the storage root directory.
	Root() string

	// Backend returns the backend name ("file" or "sqlite").
	Backend() string

	// Close releases resources.
	Close() error
}
