package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/semsearch/internal/config"
	"github.com/Aman-CERP/semsearch/internal/index"
	"github.com/Aman-CERP/semsearch/internal/watcher"
)

// Daemon ties a backend to the socket server, the PID file and, when
// enabled, the storage watcher.
type Daemon struct {
	cfg     Config
	appCfg  *config.Config
	backend Backend
	svc     *index.Service
	ownsSvc bool
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithService serves an existing service. The caller keeps ownership.
func WithService(svc *index.Service) Option {
	return func(d *Daemon) {
		d.svc = svc
		d.backend = svc
	}
}

// WithBackend serves an arbitrary backend; the storage watcher is not
// available without a service.
func WithBackend(b Backend) Option {
	return func(d *Daemon) { d.backend = b }
}

// WithAppConfig sets the application configuration used to open the
// service and to decide whether to watch storage.
func WithAppConfig(cfg *config.Config) Option {
	return func(d *Daemon) { d.appCfg = cfg }
}

// NewDaemon validates cfg and applies opts. The service is opened in Start
// unless one was supplied.
func NewDaemon(cfg Config, opts ...Option) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid daemon config: %w", err)
	}
	d := &Daemon{cfg: cfg}
	for _, opt := range opts {
		opt(d)
	}
	if d.appCfg == nil {
		d.appCfg = config.NewConfig()
	}
	return d, nil
}

// Start runs the daemon until ctx is cancelled, then cleans up the socket
// and PID file. It returns ctx.Err() after a clean shutdown.
func (d *Daemon) Start(ctx context.Context) (err error) {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}

	pid := NewPIDFile(d.cfg.PIDPath)
	if err := pid.Acquire(); err != nil {
		return err
	}
	defer func() {
		if rerr := pid.Remove(); rerr != nil {
			slog.Warn("failed to remove PID file", slog.String("error", rerr.Error()))
		}
	}()

	if d.backend == nil {
		svc, err := index.Open(ctx, d.appCfg)
		if err != nil {
			return err
		}
		d.svc, d.backend, d.ownsSvc = svc, svc, true
	}
	if d.ownsSvc {
		defer func() {
			if cerr := d.svc.Close(); cerr != nil {
				slog.Warn("failed to close index service", slog.String("error", cerr.Error()))
			}
		}()
	}

	server, err := NewServer(d.cfg.SocketPath, NewDispatcher(d.backend, d.cfg.Workers), d.cfg.Workers)
	if err != nil {
		return err
	}
	server.SetIdleTimeout(d.cfg.IdleTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})
	if d.appCfg.Storage.Watch && d.svc != nil {
		if err := d.startWatcher(gctx, g); err != nil {
			// Watching is an optimisation; serving continues without it.
			slog.Warn("storage watcher unavailable", slog.String("error", err.Error()))
		}
	}

	slog.Info("daemon started",
		slog.String("socket", d.cfg.SocketPath),
		slog.Int("workers", d.cfg.Workers))

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (d *Daemon) startWatcher(ctx context.Context, g *errgroup.Group) error {
	w, err := watcher.NewStorageWatcher(watcher.Options{DebounceWindow: d.appCfg.WatchDebounce()})
	if err != nil {
		return err
	}
	if err := w.Start(ctx, d.svc.Store().Root()); err != nil {
		_ = w.Stop()
		return err
	}
	coord := index.NewCoordinator(d.svc)
	g.Go(func() error {
		defer func() { _ = w.Stop() }()
		coord.Run(ctx, w)
		return nil
	})
	return nil
}
