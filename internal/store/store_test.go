package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/semsearch/internal/errors"
)

var backends = []string{BackendFile, BackendSQLite}

func newTestStore(t *testing.T, backend string) Store {
	t.Helper()
	s, err := New(t.TempDir(), backend)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleCorpus(name string) *Corpus {
	c := NewCorpus(name)
	c.Model = "static-3"
	c.Put(&Document{ID: "d1", Text: "alpha beta", Vector: []float32{1, 0, 0}})
	c.Put(&Document{ID: "d2", Text: "gamma", Vector: []float32{0, 1, 0}})
	c.Put(&Document{ID: "d3", Text: "delta", Vector: []float32{0.5, 0.5, 0.70710677}})
	return c
}

func TestStore_CreateLoad_EmptyCorpus(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			s := newTestStore(t, backend)
			ctx := context.Background()

			// When: creating a new corpus
			require.NoError(t, s.Create(ctx, "notes"))

			// Then: it loads back empty
			c, err := s.Load(ctx, "notes")
			require.NoError(t, err)
			assert.Equal(t, "notes", c.Name)
			assert.Equal(t, 0, c.Len())
			assert.Equal(t, 0, c.Dimension)
			assert.NotNil(t, c.IDs())
		})
	}
}

func TestStore_Create_ConflictWhenExists(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			s := newTestStore(t, backend)
			ctx := context.Background()
			require.NoError(t, s.Create(ctx, "notes"))

			err := s.Create(ctx, "notes")

			require.Error(t, err)
			assert.Equal(t, serrors.KindConflict, serrors.KindOf(err))
		})
	}
}

func TestStore_PersistLoad_RoundTrip(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			s := newTestStore(t, backend)
			ctx := context.Background()
			require.NoError(t, s.Create(ctx, "notes"))

			// Given: a corpus with three documents
			want := sampleCorpus("notes")

			// When: persisting and loading it
			require.NoError(t, s.Persist(ctx, want))
			got, err := s.Load(ctx, "notes")
			require.NoError(t, err)

			// Then: order, text and vectors survive
			assert.Equal(t, []string{"d1", "d2", "d3"}, got.IDs())
			assert.Equal(t, 3, got.Dimension)
			assert.Equal(t, "static-3", got.Model)
			for _, id := range want.IDs() {
				w, _ := want.Get(id)
				g, ok := got.Get(id)
				require.True(t, ok, id)
				assert.Equal(t, w.Text, g.Text)
				assert.Equal(t, w.Vector, g.Vector)
			}
			assert.WithinDuration(t, want.CreatedAt, got.CreatedAt, time.Millisecond)
		})
	}
}

func TestStore_Persist_ReplacesPriorState(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			s := newTestStore(t, backend)
			ctx := context.Background()
			c := sampleCorpus("notes")
			require.NoError(t, s.Persist(ctx, c))

			// When: a document is removed and the corpus persisted again
			c.Remove("d2")
			require.NoError(t, s.Persist(ctx, c))

			// Then: no trace of the removed document remains
			got, err := s.Load(ctx, "notes")
			require.NoError(t, err)
			assert.Equal(t, []string{"d1", "d3"}, got.IDs())
			assert.Len(t, got.Vectors(), 2)
		})
	}
}

func TestStore_Persist_CreatesImplicitly(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			s := newTestStore(t, backend)
			ctx := context.Background()

			require.NoError(t, s.Persist(ctx, sampleCorpus("fresh")))

			ok, err := s.Exists(ctx, "fresh")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestStore_LoadAndDelete_NotFound(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			s := newTestStore(t, backend)
			ctx := context.Background()

			_, err := s.Load(ctx, "ghost")
			assert.Equal(t, serrors.KindNotFound, serrors.KindOf(err))

			err = s.Delete(ctx, "ghost")
			assert.Equal(t, serrors.KindNotFound, serrors.KindOf(err))
		})
	}
}

func TestStore_DeleteAndList(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			s := newTestStore(t, backend)
			ctx := context.Background()
			for _, n := range []string{"zeta", "alpha", "mid"} {
				require.NoError(t, s.Create(ctx, n))
			}

			names, err := s.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)

			// When: deleting one corpus
			require.NoError(t, s.Delete(ctx, "mid"))

			// Then: its directory is gone and it is no longer listed
			_, err = os.Stat(filepath.Join(s.Root(), "mid"))
			assert.True(t, os.IsNotExist(err))
			names, err = s.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"alpha", "zeta"}, names)

			// And: the name can be created again
			require.NoError(t, s.Create(ctx, "mid"))
		})
	}
}

func TestStore_Update(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			s := newTestStore(t, backend)
			ctx := context.Background()

			// When: updating an absent corpus
			got, err := s.Update(ctx, "notes", func(c *Corpus, exists bool) error {
				assert.False(t, exists)
				c.Put(&Document{ID: "d1", Text: "one", Vector: []float32{1, 0}})
				return nil
			})
			require.NoError(t, err)

			// Then: it is created with the change and a revision
			assert.Equal(t, []string{"d1"}, got.IDs())
			assert.NotEmpty(t, got.Revision)
			loaded, err := s.Load(ctx, "notes")
			require.NoError(t, err)
			assert.Equal(t, []string{"d1"}, loaded.IDs())
			assert.Equal(t, got.Revision, loaded.Revision)

			// And: an error from fn writes nothing
			boom := serrors.ValidationError("rejected")
			_, err = s.Update(ctx, "notes", func(c *Corpus, exists bool) error {
				assert.True(t, exists)
				c.Put(&Document{ID: "d2", Text: "two", Vector: []float32{0, 1}})
				return boom
			})
			assert.ErrorIs(t, err, boom)
			loaded, err = s.Load(ctx, "notes")
			require.NoError(t, err)
			assert.Equal(t, []string{"d1"}, loaded.IDs())
			assert.Equal(t, got.Revision, loaded.Revision)
		})
	}
}

func TestStore_Update_SeesCommitsFromAnotherStore(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			root := t.TempDir()
			first, err := New(root, backend)
			require.NoError(t, err)
			second, err := New(root, backend)
			require.NoError(t, err)
			ctx := context.Background()

			add := func(s Store, id string) {
				_, err := s.Update(ctx, "shared", func(c *Corpus, _ bool) error {
					c.Put(&Document{ID: id, Text: id, Vector: []float32{1, 0}})
					return nil
				})
				require.NoError(t, err)
			}

			// When: two stores on one root take turns writing
			add(first, "a")
			add(second, "b")
			add(first, "c")

			// Then: every write survives
			c, err := second.Load(ctx, "shared")
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, c.IDs())
		})
	}
}

func TestStore_Revision(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			s := newTestStore(t, backend)
			ctx := context.Background()

			rev, err := s.Revision(ctx, "notes")
			require.NoError(t, err)
			assert.Empty(t, rev, "never written")

			// When: each commit happens
			require.NoError(t, s.Create(ctx, "notes"))
			created, err := s.Revision(ctx, "notes")
			require.NoError(t, err)

			c := sampleCorpus("notes")
			require.NoError(t, s.Persist(ctx, c))
			persisted, err := s.Revision(ctx, "notes")
			require.NoError(t, err)

			// Then: the token changes every time and matches the written corpus
			assert.NotEmpty(t, created)
			assert.NotEqual(t, created, persisted)
			assert.Equal(t, persisted, c.Revision)

			// And: deleting clears it
			require.NoError(t, s.Delete(ctx, "notes"))
			rev, err = s.Revision(ctx, "notes")
			require.NoError(t, err)
			assert.Empty(t, rev)

			_, err = s.Revision(ctx, "../x")
			assert.Equal(t, serrors.KindValidation, serrors.KindOf(err))
		})
	}
}

func TestStore_List_IgnoresDebris(t *testing.T) {
	s := newTestStore(t, BackendFile)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "real"))

	// Given: an uncommitted directory and a stray staging entry
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "half"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), ".staging-x-1"), 0755))

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"real"}, names)

	// And: the uncommitted directory does not block a create
	require.NoError(t, s.Create(ctx, "half"))
}

func TestStore_List_EmptyRoot(t *testing.T) {
	s := newTestStore(t, BackendFile)
	names, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.NotNil(t, names)
}

func TestStore_Load_CorruptGroup(t *testing.T) {
	s := newTestStore(t, BackendFile)
	ctx := context.Background()
	require.NoError(t, s.Persist(ctx, sampleCorpus("notes")))

	// Given: a manifest that no longer parses
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "notes", manifestFile), []byte("{"), 0644))

	_, err := s.Load(ctx, "notes")

	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeCorruptIndex, serrors.GetCode(err))
	assert.Equal(t, serrors.KindInternal, serrors.KindOf(err))
}

func TestFileCodec_RemovesStaleGenerations(t *testing.T) {
	s := newTestStore(t, BackendFile)
	ctx := context.Background()
	c := sampleCorpus("notes")
	require.NoError(t, s.Persist(ctx, c))
	require.NoError(t, s.Persist(ctx, c))
	require.NoError(t, s.Persist(ctx, c))

	entries, err := os.ReadDir(filepath.Join(s.Root(), "notes"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{manifestFile, "documents-3.json", "vectors-3.gob"}, names)
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(t.TempDir(), "mongo")
	assert.Error(t, err)
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"notes", true},
		{"my-index_2", true},
		{"a.b", true},
		{"my notes", true},
		{"café", true},
		{"", false},
		{"..", false},
		{"a..b", false},
		{"../etc", false},
		{"a/b", false},
		{`a\b`, false},
		{".hidden", false},
		{"nul\x00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.name)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, serrors.KindValidation, serrors.KindOf(err))
		})
	}
}

func TestStore_RejectsInvalidNamesBeforeTouchingDisk(t *testing.T) {
	s := newTestStore(t, BackendFile)
	ctx := context.Background()

	err := s.Create(ctx, "../escape")

	assert.Equal(t, serrors.KindValidation, serrors.KindOf(err))
	_, statErr := os.Stat(filepath.Join(filepath.Dir(s.Root()), "escape"))
	assert.True(t, os.IsNotExist(statErr))
}
