package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.semsearch/logs/).
// SEMSEARCH_HOME relocates it; the temp directory is the last resort.
func DefaultLogDir() string {
	if v := os.Getenv("SEMSEARCH_HOME"); v != "" {
		return filepath.Join(v, "logs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".semsearch", "logs")
	}
	return filepath.Join(home, ".semsearch", "logs")
}

// DefaultLogPath returns the default server log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}
