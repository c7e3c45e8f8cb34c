package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockDirName holds one lock file per corpus name below the storage root.
const lockDirName = ".locks"

// lockRetryDelay is how often a blocked lock attempt polls.
const lockRetryDelay = 10 * time.Millisecond

// nameLocks provides cross-process exclusion per corpus name using
// gofrs/flock. Mutations take the exclusive lock, loads the shared one.
// Lock files outlive their corpus so a recreated name keeps the same file.
type nameLocks struct {
	dir string
}

func newNameLocks(root string) (*nameLocks, error) {
	dir := filepath.Join(root, lockDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &nameLocks{dir: dir}, nil
}

// path returns the lock file for an already validated name.
func (l *nameLocks) path(name string) string {
	return filepath.Join(l.dir, name+".lock")
}

// exclusive blocks until the write lock on name is held or ctx is done.
func (l *nameLocks) exclusive(ctx context.Context, name string) (func(), error) {
	fl := flock.New(l.path(name))
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	return l.release(fl, name, ok, err)
}

// shared blocks until a read lock on name is held or ctx is done.
func (l *nameLocks) shared(ctx context.Context, name string) (func(), error) {
	fl := flock.New(l.path(name))
	ok, err := fl.TryRLockContext(ctx, lockRetryDelay)
	return l.release(fl, name, ok, err)
}

func (l *nameLocks) release(fl *flock.Flock, name string, ok bool, err error) (func(), error) {
	if err != nil {
		return nil, fmt.Errorf("failed to lock index %q: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("failed to lock index %q", name)
	}
	return func() { _ = fl.Unlock() }, nil
}
