// Package cmd provides the CLI commands for semsearch.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semsearch/internal/config"
	serrors "github.com/Aman-CERP/semsearch/internal/errors"
	"github.com/Aman-CERP/semsearch/internal/logging"
	"github.com/Aman-CERP/semsearch/pkg/version"
)

// app carries state shared by all commands of one invocation.
type app struct {
	cfg        *config.Config
	jsonOutput bool
	local      bool
	debug      bool
	socket     string
}

// NewRootCmd creates the root command for the semsearch CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "semsearch",
		Short: "Semantic search over named document corpora",
		Long: `semsearch stores named corpora of text documents, embeds each document
and ranks documents by cosine similarity to a natural language query.

Run 'semsearch serve' to start the daemon; the other commands talk to it
over a Unix socket and fall back to opening the storage directly when no
daemon is running.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}

	cmd.SetVersionTemplate("semsearch version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "Print raw JSON results")
	cmd.PersistentFlags().BoolVar(&a.local, "local", false, "Open storage directly instead of using the daemon")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Log debug output to stderr")
	cmd.PersistentFlags().StringVar(&a.socket, "socket", "", "Daemon socket path (overrides server.socket_path)")

	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newStopCmd(a))
	cmd.AddCommand(newCreateCmd(a))
	cmd.AddCommand(newDeleteCmd(a))
	cmd.AddCommand(newListCmd(a))
	cmd.AddCommand(newAddCmd(a))
	cmd.AddCommand(newRemoveCmd(a))
	cmd.AddCommand(newDocsCmd(a))
	cmd.AddCommand(newQueryCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newPingCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// init loads configuration and installs the CLI logger. serve replaces the
// logger with its own.
func (a *app) init() error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, err := config.Load(wd)
	if err != nil {
		return err
	}
	if a.socket != "" {
		cfg.Server.SocketPath = a.socket
	}
	a.cfg = cfg

	level := "warn"
	if a.debug {
		level = "debug"
	}
	logger, _, err := logging.Setup(logging.Config{Level: level, WriteToStderr: true})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// Execute runs the root command and reports a failure on stderr.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		jsonMode, _ := root.PersistentFlags().GetBool("json")
		printError(root.ErrOrStderr(), err, jsonMode)
	}
	return err
}

func printError(w io.Writer, err error, jsonMode bool) {
	if jsonMode {
		if data, jerr := serrors.FormatJSON(err); jerr == nil {
			_, _ = fmt.Fprintln(w, string(data))
			return
		}
	}
	_, _ = fmt.Fprint(w, serrors.FormatForCLI(err))
}
