package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// revisionSeq keeps tokens from one process distinct within a clock tick.
var revisionSeq atomic.Uint64

// revisionPath returns the token file for an already validated name. It
// lives next to the lock file so deleting the group does not touch it.
func (l *nameLocks) revisionPath(name string) string {
	return filepath.Join(l.dir, name+".rev")
}

// readRevision returns the current token of name, or "" when none was
// written. Tokens change on every commit by any process sharing the root.
func (l *nameLocks) readRevision(name string) (string, error) {
	data, err := os.ReadFile(l.revisionPath(name))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// bumpRevision writes a fresh token for name. Must be called with the
// exclusive lock held, before the commit it announces: a crash in between
// only costs other processes a reload.
func (l *nameLocks) bumpRevision(name string) (string, error) {
	token := fmt.Sprintf("%d-%d-%d", os.Getpid(), time.Now().UnixNano(), revisionSeq.Add(1))
	err := writeFileAtomic(l.revisionPath(name), func(w io.Writer) error {
		_, err := io.WriteString(w, token)
		return err
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// clearRevision drops the token of a deleted group.
func (l *nameLocks) clearRevision(name string) error {
	if err := os.Remove(l.revisionPath(name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
