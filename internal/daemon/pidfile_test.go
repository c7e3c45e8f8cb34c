package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semsearch/internal/config"
)

func TestPIDFile_WriteReadRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "d.pid")
	p := NewPIDFile(path)
	assert.Equal(t, path, p.Path())

	_, err := p.Read()
	assert.ErrorIs(t, err, ErrPIDFileNotFound)
	assert.False(t, p.IsRunning())

	require.NoError(t, p.Write())
	pid, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, p.IsRunning())

	require.NoError(t, p.Remove())
	require.NoError(t, p.Remove(), "removing twice is not an error")
}

func TestPIDFile_Read_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"garbage", "abc"},
		{"zero", "0\n"},
		{"negative", "-5"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "d.pid")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := NewPIDFile(path).Read()

			assert.Error(t, err)
			assert.NotErrorIs(t, err, ErrPIDFileNotFound)
		})
	}
}

func TestPIDFile_Acquire(t *testing.T) {
	t.Run("fresh", func(t *testing.T) {
		p := NewPIDFile(filepath.Join(t.TempDir(), "d.pid"))
		require.NoError(t, p.Acquire())
		pid, err := p.Read()
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), pid)
	})

	t.Run("own pid is reacquired", func(t *testing.T) {
		p := NewPIDFile(filepath.Join(t.TempDir(), "d.pid"))
		require.NoError(t, p.Write())
		assert.NoError(t, p.Acquire())
	})

	t.Run("garbage is replaced", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "d.pid")
		require.NoError(t, os.WriteFile(path, []byte("???"), 0644))
		p := NewPIDFile(path)
		require.NoError(t, p.Acquire())
		pid, err := p.Read()
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), pid)
	})

	t.Run("live process blocks", func(t *testing.T) {
		// PID 1 always exists; signalling it may be refused, in which
		// case the file counts as stale and the test has nothing to prove.
		if os.Getpid() == 1 || !processExists(1) {
			t.Skip("cannot probe pid 1")
		}
		path := filepath.Join(t.TempDir(), "d.pid")
		require.NoError(t, os.WriteFile(path, []byte("1\n"), 0644))

		err := NewPIDFile(path).Acquire()

		assert.ErrorIs(t, err, ErrAlreadyRunning)
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{SocketPath: "/tmp/s.sock", PIDPath: "/tmp/s.pid", Timeout: time.Second, Workers: 1}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"no socket", func(c *Config) { c.SocketPath = "" }, true},
		{"no pid path", func(c *Config) { c.PIDPath = "" }, true},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("SEMSEARCH_HOME", "/srv/semsearch")

	c := DefaultConfig()

	assert.Equal(t, "/srv/semsearch/semsearch.sock", c.SocketPath)
	assert.Equal(t, "/srv/semsearch/semsearch.pid", c.PIDPath)
	assert.Equal(t, 1, c.Workers)
	assert.NoError(t, c.Validate())
}

func TestFromAppConfig(t *testing.T) {
	t.Setenv("SEMSEARCH_HOME", "/srv/semsearch")

	t.Run("nil keeps defaults", func(t *testing.T) {
		assert.Equal(t, DefaultConfig(), FromAppConfig(nil))
	})

	t.Run("socket override moves pid file", func(t *testing.T) {
		app := config.NewConfig()
		app.Server.SocketPath = "/run/s.sock"
		app.Server.Workers = 3

		c := FromAppConfig(app)

		assert.Equal(t, "/run/s.sock", c.SocketPath)
		assert.Equal(t, "/run/s.sock.pid", c.PIDPath)
		assert.Equal(t, 3, c.Workers)
	})
}

func TestConfig_EnsureDir(t *testing.T) {
	root := t.TempDir()
	c := Config{
		SocketPath: filepath.Join(root, "a", "s.sock"),
		PIDPath:    filepath.Join(root, "b", "s.pid"),
	}

	require.NoError(t, c.EnsureDir())

	assert.DirExists(t, filepath.Join(root, "a"))
	assert.DirExists(t, filepath.Join(root, "b"))
}
