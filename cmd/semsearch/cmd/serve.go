package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semsearch/internal/config"
	"github.com/Aman-CERP/semsearch/internal/daemon"
	"github.com/Aman-CERP/semsearch/internal/index"
	"github.com/Aman-CERP/semsearch/internal/logging"
	"github.com/Aman-CERP/semsearch/internal/mcp"
	"github.com/Aman-CERP/semsearch/internal/output"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		transport string
		workers   int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the search service in the foreground",
		Long: `Run the search service until interrupted.

With the unix transport (default) the service listens on a Unix socket and
the other semsearch commands use it. With the mcp transport the seven
operations are served as Model Context Protocol tools over stdio; nothing
but protocol messages is written to stdout.`,
		Example: `  semsearch serve
  semsearch serve --transport mcp
  semsearch serve --workers 4 --socket /tmp/semsearch.sock`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if transport != "" {
				a.cfg.Server.Transport = transport
			}
			if workers > 0 {
				a.cfg.Server.Workers = workers
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			switch a.cfg.Server.Transport {
			case config.TransportMCP:
				return runServeMCP(ctx, a.cfg)
			default:
				return runServeUnix(ctx, cmd, a.cfg)
			}
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", "", "Transport: unix or mcp (default from config)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent requests (default from config; 1 is sequential)")
	return cmd
}

func runServeUnix(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Server.LogLevel
	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer cleanup()

	dcfg := daemon.FromAppConfig(cfg)
	client := daemon.NewClient(dcfg)
	if client.IsRunning() {
		return fmt.Errorf("a daemon is already serving %s", dcfg.SocketPath)
	}

	d, err := daemon.NewDaemon(dcfg, daemon.WithAppConfig(cfg))
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	out.Statusf("", "Socket: %s", dcfg.SocketPath)
	out.Statusf("", "Storage: %s (%s)", cfg.Storage.Root, cfg.Storage.Backend)
	out.Statusf("", "Logs: %s", logCfg.FilePath)
	out.Status("", "Press Ctrl+C to stop")

	err = d.Start(ctx)
	if errors.Is(err, context.Canceled) {
		slog.Info("daemon stopped")
		return nil
	}
	return err
}

func runServeMCP(ctx context.Context, cfg *config.Config) error {
	cleanup, err := logging.SetupMCPMode(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer cleanup()

	svc, err := index.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Warn("failed to close index service", slog.String("error", err.Error()))
		}
	}()

	server, err := mcp.NewServer(daemon.NewDispatcher(svc, cfg.Server.Workers))
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

func newStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := a.writer(cmd)
			pidFile := daemon.NewPIDFile(daemon.FromAppConfig(a.cfg).PIDPath)

			if !pidFile.IsRunning() {
				out.Status("", "Daemon is not running")
				return nil
			}
			pid, err := pidFile.Read()
			if err != nil {
				return fmt.Errorf("failed to read PID: %w", err)
			}
			if err := pidFile.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to stop daemon: %w", err)
			}

			for i := 0; i < 50; i++ {
				time.Sleep(100 * time.Millisecond)
				if !pidFile.IsRunning() {
					out.Successf("Daemon stopped (was pid: %d)", pid)
					return nil
				}
			}
			return fmt.Errorf("daemon (pid %d) did not stop within 5s", pid)
		},
	}
}
