package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semsearch/internal/daemon"
	"github.com/Aman-CERP/semsearch/internal/index"
	"github.com/Aman-CERP/semsearch/internal/output"
	"github.com/Aman-CERP/semsearch/pkg/version"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and storage status",
		Long: `Show the running daemon's status. Without a daemon (or with --local) the
storage is opened directly and the daemon is reported as stopped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.status(cmd.Context())
			if err != nil {
				return err
			}

			out := a.writer(cmd)
			if out.JSON() {
				return out.Encode(st)
			}
			printStatus(out, st)
			return nil
		},
	}
}

// status asks the daemon, or builds the same report from a local service.
func (a *app) status(ctx context.Context) (*daemon.StatusResult, error) {
	if !a.local {
		client := daemon.NewClient(daemon.FromAppConfig(a.cfg))
		if client.IsRunning() {
			return client.Status(ctx)
		}
	}

	svc, err := index.Open(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = svc.Close() }()

	st, err := svc.Status(ctx)
	if err != nil {
		return nil, err
	}
	return &daemon.StatusResult{Running: false, Version: version.Version, Status: *st}, nil
}

func printStatus(out *output.Writer, st *daemon.StatusResult) {
	out.Header("semsearch " + st.Version)
	if st.Running {
		out.Field("Daemon", "running")
		out.Field("PID", st.PID)
		out.Field("Uptime", st.Uptime)
		out.Field("Workers", st.Workers)
	} else {
		out.Field("Daemon", "stopped")
	}
	out.Field("Model", st.Model)
	out.Field("Dimensions", st.Dimensions)
	out.Field("Engine", st.Engine)
	out.Field("Backend", st.Backend)
	out.Field("Storage", st.StorageRoot)
	out.Field("Indexes", st.Indexes)
	if st.Running {
		cached := "none"
		if len(st.CachedIndexes) > 0 {
			cached = strings.Join(st.CachedIndexes, ", ")
		}
		out.Field("Cached", cached)
	}
}

func newPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the daemon responds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := daemon.NewClient(daemon.FromAppConfig(a.cfg))
			if err := client.Ping(cmd.Context()); err != nil {
				return err
			}
			out := a.writer(cmd)
			if out.JSON() {
				return out.Encode(daemon.PingResult{Pong: true})
			}
			out.Success("pong")
			return nil
		},
	}
}
