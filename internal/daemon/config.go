// Package daemon serves the corpus operations over a Unix domain socket.
// A long-running daemon keeps corpora and the embedder in memory; CLI
// commands connect to it instead of loading state on every invocation.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/semsearch/internal/config"
)

// Config holds configuration for the daemon service.
type Config struct {
	// SocketPath is the Unix domain socket path for IPC.
	// Default: ~/.semsearch/semsearch.sock
	SocketPath string

	// PIDPath is the file path for storing the daemon's process ID.
	// Default: ~/.semsearch/semsearch.pid
	PIDPath string

	// Timeout bounds one client round trip.
	// Default: 30s
	Timeout time.Duration

	// IdleTimeout closes server connections that stay silent.
	// Default: 30s
	IdleTimeout time.Duration

	// Workers bounds concurrently executing requests.
	// Default: 1 (strictly sequential)
	Workers int
}

// DefaultConfig returns a Config with paths under the data directory.
func DefaultConfig() Config {
	dir := config.DataDir()
	return Config{
		SocketPath:  filepath.Join(dir, "semsearch.sock"),
		PIDPath:     filepath.Join(dir, "semsearch.pid"),
		Timeout:     30 * time.Second,
		IdleTimeout: DefaultIdleTimeout,
		Workers:     1,
	}
}

// FromAppConfig derives the daemon configuration from the application
// configuration. An explicit socket path moves the PID file next to it.
func FromAppConfig(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if cfg.Server.SocketPath != "" {
		c.SocketPath = cfg.Server.SocketPath
		c.PIDPath = c.SocketPath + ".pid"
	}
	if cfg.Server.Workers > 0 {
		c.Workers = cfg.Server.Workers
	}
	return c
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	return nil
}

// EnsureDir creates the directories of the socket and PID files.
func (c Config) EnsureDir() error {
	for _, dir := range []string{filepath.Dir(c.SocketPath), filepath.Dir(c.PIDPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
