package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	serrors "github.com/Aman-CERP/semsearch/internal/errors"
)

// Backend names.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Reserved root entry prefixes.
const (
	stagingPrefix = ".staging-"
	trashPrefix   = ".trash-"
)

// codec reads and writes one artifact group directory.
type codec interface {
	// name is the backend name.
	name() string

	// marker is the file whose presence marks a committed group.
	marker() string

	// write stores c in dir, replacing prior content atomically.
	write(ctx context.Context, dir string, c *Corpus) error

	// read loads the group in dir.
	read(ctx context.Context, dir, name string) (*Corpus, error)
}

// New opens a store rooted at root using the named backend ("file" or
// "sqlite"). The root is created if missing and leftovers of interrupted
// creates and deletes are removed.
func New(root, backend string) (Store, error) {
	var c codec
	switch strings.ToLower(backend) {
	case BackendFile, "":
		c = fileCodec{}
	case BackendSQLite:
		c = sqliteCodec{}
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (valid options: file, sqlite)", backend)
	}
	return newDirStore(root, c)
}

// dirStore implements Store over one directory per corpus. Group creation
// and deletion are single renames, so a half-created or half-deleted corpus
// is never visible under its own name.
type dirStore struct {
	root  string
	codec codec
	locks *nameLocks
}

func newDirStore(root string, c codec) (*dirStore, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root must not be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}

	locks, err := newNameLocks(abs)
	if err != nil {
		return nil, err
	}

	s := &dirStore{root: abs, codec: c, locks: locks}
	s.sweep()
	return s, nil
}

// sweepAge keeps sweep away from groups another process is still writing.
const sweepAge = 10 * time.Minute

// sweep removes staging and trash directories left by a crash.
func (s *dirStore) sweep() {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return
	}
	for _, e := range entries {
		n := e.Name()
		if !strings.HasPrefix(n, stagingPrefix) && !strings.HasPrefix(n, trashPrefix) {
			continue
		}
		if info, err := e.Info(); err == nil && time.Since(info.ModTime()) > sweepAge {
			slog.Debug("removing interrupted artifact group", slog.String("path", n))
			_ = os.RemoveAll(filepath.Join(s.root, n))
		}
	}
}

func (s *dirStore) Root() string    { return s.root }
func (s *dirStore) Backend() string { return s.codec.name() }
func (s *dirStore) Close() error    { return nil }

func (s *dirStore) dir(name string) string {
	return filepath.Join(s.root, name)
}

// committed reports whether the group for name carries its marker file.
func (s *dirStore) committed(name string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.dir(name), s.codec.marker()))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, storageError("stat index", name, err)
}

// Create writes an empty corpus.
func (s *dirStore) Create(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	unlock, err := s.locks.exclusive(ctx, name)
	if err != nil {
		return storageError("lock index", name, err)
	}
	defer unlock()

	exists, err := s.committed(name)
	if err != nil {
		return err
	}
	if exists {
		return serrors.IndexExists(name)
	}

	return s.commit(ctx, NewCorpus(name), false)
}

// commit writes c under a fresh revision, installing a new group when none
// is committed yet. Must be called with the exclusive lock held.
func (s *dirStore) commit(ctx context.Context, c *Corpus, exists bool) error {
	rev, err := s.locks.bumpRevision(c.Name)
	if err != nil {
		return storageError("write revision", c.Name, err)
	}
	if !exists {
		if err := s.install(ctx, c); err != nil {
			return err
		}
	} else if err := s.codec.write(ctx, s.dir(c.Name), c); err != nil {
		return storageError("persist index", c.Name, err)
	}
	c.Revision = rev
	return nil
}

// install stages a complete group for c and renames it into place.
// Must be called with the exclusive lock held and no committed group present.
func (s *dirStore) install(ctx context.Context, c *Corpus) error {
	staging, err := os.MkdirTemp(s.root, stagingPrefix+c.Name+"-")
	if err != nil {
		return storageError("create staging directory", c.Name, err)
	}

	if err := s.codec.write(ctx, staging, c); err != nil {
		_ = os.RemoveAll(staging)
		return storageError("write index", c.Name, err)
	}

	target := s.dir(c.Name)
	// An uncommitted directory under the name is debris, not a corpus.
	if err := os.RemoveAll(target); err != nil {
		_ = os.RemoveAll(staging)
		return storageError("clear index directory", c.Name, err)
	}
	if err := os.Rename(staging, target); err != nil {
		_ = os.RemoveAll(staging)
		return storageError("install index", c.Name, err)
	}
	return syncDir(s.root)
}

// Exists checks presence without loading.
func (s *dirStore) Exists(_ context.Context, name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	return s.committed(name)
}

// Load reads a persisted corpus.
func (s *dirStore) Load(ctx context.Context, name string) (*Corpus, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	unlock, err := s.locks.shared(ctx, name)
	if err != nil {
		return nil, storageError("lock index", name, err)
	}
	defer unlock()

	exists, err := s.committed(name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, serrors.IndexNotFound(name)
	}
	return s.read(ctx, name)
}

// read loads a committed group and stamps it with its revision. Must be
// called with a lock on name held.
func (s *dirStore) read(ctx context.Context, name string) (*Corpus, error) {
	rev, err := s.locks.readRevision(name)
	if err != nil {
		return nil, storageError("read revision", name, err)
	}

	start := time.Now()
	c, err := s.codec.read(ctx, s.dir(name), name)
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrCodeCorruptIndex, fmt.Errorf("load index %q: %w", name, err))
	}
	c.Revision = rev
	slog.Debug("index loaded",
		slog.String("index", name),
		slog.String("backend", s.codec.name()),
		slog.Int("documents", c.Len()),
		slog.Duration("duration", time.Since(start)))
	return c, nil
}

// Persist atomically replaces the stored state of c.
func (s *dirStore) Persist(ctx context.Context, c *Corpus) error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	unlock, err := s.locks.exclusive(ctx, c.Name)
	if err != nil {
		return storageError("lock index", c.Name, err)
	}
	defer unlock()

	c.UpdatedAt = time.Now().UTC()

	exists, err := s.committed(c.Name)
	if err != nil {
		return err
	}
	return s.commit(ctx, c, exists)
}

// Update loads the committed state of name, or a new empty corpus, passes
// it to fn and persists the result, all under the exclusive lock. Writers
// in other processes cannot interleave, so no change is lost to a stale
// copy. An error from fn aborts without writing.
func (s *dirStore) Update(ctx context.Context, name string, fn func(c *Corpus, exists bool) error) (*Corpus, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	unlock, err := s.locks.exclusive(ctx, name)
	if err != nil {
		return nil, storageError("lock index", name, err)
	}
	defer unlock()

	exists, err := s.committed(name)
	if err != nil {
		return nil, err
	}
	c := NewCorpus(name)
	if exists {
		if c, err = s.read(ctx, name); err != nil {
			return nil, err
		}
	}

	if err := fn(c, exists); err != nil {
		return nil, err
	}
	c.UpdatedAt = time.Now().UTC()
	if err := s.commit(ctx, c, exists); err != nil {
		return nil, err
	}
	return c, nil
}

// Revision returns the token of the last commit to name without taking a
// lock. It is "" for a name that was never written or has been deleted.
func (s *dirStore) Revision(_ context.Context, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	rev, err := s.locks.readRevision(name)
	if err != nil {
		return "", storageError("read revision", name, err)
	}
	return rev, nil
}

// Delete removes every artifact of name. The group is first renamed to a
// trash entry, which makes it disappear in one step.
func (s *dirStore) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	unlock, err := s.locks.exclusive(ctx, name)
	if err != nil {
		return storageError("lock index", name, err)
	}
	defer unlock()

	exists, err := s.committed(name)
	if err != nil {
		return err
	}
	if !exists {
		return serrors.IndexNotFound(name)
	}

	trash := filepath.Join(s.root, fmt.Sprintf("%s%s-%d", trashPrefix, name, time.Now().UnixNano()))
	if err := os.Rename(s.dir(name), trash); err != nil {
		return storageError("delete index", name, err)
	}
	if err := s.locks.clearRevision(name); err != nil {
		return storageError("clear revision", name, err)
	}
	if err := syncDir(s.root); err != nil {
		slog.Warn("failed to sync storage root", slog.String("error", err.Error()))
	}
	if err := os.RemoveAll(trash); err != nil {
		// The corpus is already gone; sweep retries on next start.
		slog.Warn("failed to remove deleted index", slog.String("path", trash), slog.String("error", err.Error()))
	}
	return nil
}

// List returns the names of all committed groups.
func (s *dirStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, storageError("list indexes", "", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || hidden(e.Name()) {
			continue
		}
		if ValidateName(e.Name()) != nil {
			continue
		}
		ok, err := s.committed(e.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func storageError(op, name string, err error) error {
	se := serrors.New(serrors.ErrCodeStorageFailed, fmt.Sprintf("%s: %v", op, err), err)
	if name != "" {
		se.WithDetail("index", name)
	}
	return se
}
