package store

import (
	"strings"

	serrors "github.com/Aman-CERP/semsearch/internal/errors"
)

// MaxNameLength is the longest accepted corpus name, in bytes.
const MaxNameLength = 255

// ValidateName rejects corpus names that could escape the storage root or
// collide with reserved entries. It runs before any path is built.
func ValidateName(name string) error {
	invalid := func(reason string) error {
		return serrors.Newf(serrors.ErrCodeInvalidName, "invalid index name %q: %s", name, reason).
			WithDetail("index", name)
	}

	switch {
	case name == "":
		return invalid("name is empty")
	case strings.Contains(name, ".."):
		return invalid("name must not contain '..'")
	case strings.ContainsAny(name, `/\`):
		return invalid("name must not contain path separators")
	case strings.ContainsRune(name, 0):
		return invalid("name must not contain NUL")
	case strings.HasPrefix(name, "."):
		return invalid("name must not start with '.'")
	case len(name) > MaxNameLength:
		return invalid("name is too long")
	}
	return nil
}

// hidden reports whether a root entry is reserved rather than a corpus.
func hidden(entry string) bool {
	return strings.HasPrefix(entry, ".")
}
