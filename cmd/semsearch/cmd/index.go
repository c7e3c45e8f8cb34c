package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semsearch/internal/daemon"
	"github.com/Aman-CERP/semsearch/internal/output"
)

func newCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "create NAME",
		Short:   "Create an empty corpus",
		Example: "  semsearch create notes",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, done, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			if err := ops.CreateIndex(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.acknowledge(cmd, daemon.OKResult{Status: "ok", Name: args[0]}, "Created index %q", args[0])
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a corpus and all of its documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, done, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			if err := ops.DeleteIndex(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.acknowledge(cmd, daemon.OKResult{Status: "ok", Name: args[0]}, "Deleted index %q", args[0])
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List corpora",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ops, done, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			names, err := ops.ListIndexes(cmd.Context())
			if err != nil {
				return err
			}
			out := a.writer(cmd)
			if out.JSON() {
				if names == nil {
					names = []string{}
				}
				return out.Encode(daemon.IndexesResult{Indexes: names})
			}
			out.List(names, "No indexes.")
			return nil
		},
	}
}

// writer returns the output writer for cmd's stdout.
func (a *app) writer(cmd *cobra.Command) *output.Writer {
	return output.New(cmd.OutOrStdout(), output.WithJSON(a.jsonOutput))
}

// acknowledge reports a successful mutation.
func (a *app) acknowledge(cmd *cobra.Command, res daemon.OKResult, format string, args ...any) error {
	out := a.writer(cmd)
	if out.JSON() {
		return out.Encode(res)
	}
	out.Successf(format, args...)
	return nil
}
