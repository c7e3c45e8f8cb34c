package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semsearch/internal/config"
	serrors "github.com/Aman-CERP/semsearch/internal/errors"
	"github.com/Aman-CERP/semsearch/internal/index"
)

func testDaemonConfig(t *testing.T) Config {
	t.Helper()
	socketPath := filepath.Join("/tmp", fmt.Sprintf("semsearch-daemon-test-%d.sock", time.Now().UnixNano()))
	t.Cleanup(func() { _ = os.Remove(socketPath) })
	return Config{
		SocketPath:  socketPath,
		PIDPath:     filepath.Join(t.TempDir(), "semsearch.pid"),
		Timeout:     5 * time.Second,
		IdleTimeout: time.Second,
		Workers:     1,
	}
}

// runDaemon starts d and returns a stop func that waits for Start to return.
func runDaemon(t *testing.T, d *Daemon, cfg Config) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()

	client := NewClient(cfg)
	require.Eventually(t, client.IsRunning, 2*time.Second, 10*time.Millisecond)

	var stopped bool
	stop := func() error {
		if stopped {
			return nil
		}
		stopped = true
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(5 * time.Second):
			return fmt.Errorf("daemon did not stop")
		}
	}
	t.Cleanup(func() { _ = stop() })
	return stop
}

func TestNewDaemon_InvalidConfig(t *testing.T) {
	_, err := NewDaemon(Config{})
	assert.Error(t, err)
}

func TestDaemon_StartStop(t *testing.T) {
	cfg := testDaemonConfig(t)
	d, err := NewDaemon(cfg, WithService(newTestService(t)))
	require.NoError(t, err)

	stop := runDaemon(t, d, cfg)

	// Then: the PID file names this process
	pid, err := NewPIDFile(cfg.PIDPath).Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	// When: the context is cancelled
	err = stop()

	// Then: Start reports cancellation and cleans up
	assert.ErrorIs(t, err, context.Canceled)
	_, err = os.Stat(cfg.SocketPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(cfg.PIDPath)
	assert.True(t, os.IsNotExist(err))
}

func TestDaemon_StalePIDFileIsReplaced(t *testing.T) {
	// Given: a PID file naming a process that cannot exist
	cfg := testDaemonConfig(t)
	require.NoError(t, os.WriteFile(cfg.PIDPath, []byte("not-a-pid\n"), 0644))

	d, err := NewDaemon(cfg, WithService(newTestService(t)))
	require.NoError(t, err)
	runDaemon(t, d, cfg)

	pid, err := NewPIDFile(cfg.PIDPath).Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestClient_EndToEnd(t *testing.T) {
	cfg := testDaemonConfig(t)
	d, err := NewDaemon(cfg, WithService(newTestService(t)))
	require.NoError(t, err)
	runDaemon(t, d, cfg)

	client := NewClient(cfg)
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))

	// Given: a corpus with three documents
	require.NoError(t, client.CreateIndex(ctx, "notes"))
	require.NoError(t, client.AddDocument(ctx, "notes", "cats", "cats purr and chase mice"))
	require.NoError(t, client.AddDocument(ctx, "notes", "rust", "rust borrow checker lifetimes"))
	require.NoError(t, client.AddDocument(ctx, "notes", "bread", "sourdough bread needs starter"))

	names, err := client.ListIndexes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"notes"}, names)

	ids, err := client.ListDocuments(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, []string{"cats", "rust", "bread"}, ids)

	// When: querying with the default top_k
	res, err := client.Query(ctx, "notes", "sourdough bread starter", 0)
	require.NoError(t, err)

	// Then: every document is ranked and the best match comes first
	require.Len(t, res.Results, 3)
	assert.Equal(t, "/corpus/bread", res.Results[0].Source)
	assert.Equal(t, 1, res.Results[0].Rank)
	assert.Equal(t, 3, res.Results[0].Total)
	assert.Contains(t, res.Text, "Source: /corpus/bread")

	// And: errors keep their kind across the socket
	err = client.CreateIndex(ctx, "notes")
	assert.True(t, serrors.IsKind(err, serrors.KindConflict), "got %v", err)

	err = client.RemoveDocument(ctx, "notes", "ghost")
	assert.True(t, serrors.IsKind(err, serrors.KindNotFound), "got %v", err)

	err = client.CreateIndex(ctx, "../escape")
	assert.True(t, serrors.IsKind(err, serrors.KindValidation), "got %v", err)

	// And: deleting leaves nothing to query
	require.NoError(t, client.DeleteIndex(ctx, "notes"))
	res, err = client.Query(ctx, "notes", "bread", 0)
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Equal(t, index.NoResultsMessage, res.Text)

	st, err := client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.Equal(t, os.Getpid(), st.PID)
	assert.Equal(t, 1, st.Workers)
}

func TestClient_NotRunning(t *testing.T) {
	cfg := testDaemonConfig(t)
	client := NewClient(cfg)

	assert.False(t, client.IsRunning())
	assert.Error(t, client.Ping(context.Background()))
}

func TestDaemon_WatcherPicksUpExternalDelete(t *testing.T) {
	// Given: a daemon watching its storage root
	cfg := testDaemonConfig(t)
	appCfg := config.NewConfig()
	appCfg.Storage.Watch = true
	appCfg.Storage.WatchDebounce = "20ms"

	svc := newTestService(t)
	d, err := NewDaemon(cfg, WithService(svc), WithAppConfig(appCfg))
	require.NoError(t, err)
	runDaemon(t, d, cfg)

	client := NewClient(cfg)
	ctx := context.Background()
	require.NoError(t, client.AddDocument(ctx, "shared", "a", "alpha beta"))
	_, err = client.Query(ctx, "shared", "alpha", 1)
	require.NoError(t, err)

	// When: another process removes the corpus directory
	require.NoError(t, os.RemoveAll(filepath.Join(svc.Store().Root(), "shared")))

	// Then: the cached copy is dropped and queries see an empty corpus
	assert.Eventually(t, func() bool {
		res, err := client.Query(ctx, "shared", "alpha", 1)
		return err == nil && len(res.Results) == 0
	}, 3*time.Second, 25*time.Millisecond)
}
