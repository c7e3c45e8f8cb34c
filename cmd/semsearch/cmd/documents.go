package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semsearch/internal/daemon"
	serrors "github.com/Aman-CERP/semsearch/internal/errors"
)

func newAddCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "add NAME DOC_ID [TEXT...]",
		Short: "Add or replace a document",
		Long: `Embed a document and store it in a corpus. A document with the same id
is replaced and moves to the end of the corpus. The corpus is created if it
does not exist.

The text comes from the remaining arguments, from --file, or from stdin
when --file is "-".`,
		Example: `  semsearch add notes cats "Cats purr when content"
  semsearch add notes readme --file README.md
  cat page.txt | semsearch add notes page --file -`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, id := args[0], args[1]
			text, err := documentText(cmd.InOrStdin(), args[2:], file)
			if err != nil {
				return err
			}

			ops, done, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			if err := ops.AddDocument(cmd.Context(), name, id, text); err != nil {
				return err
			}
			return a.acknowledge(cmd, daemon.OKResult{Status: "ok", Name: name, DocID: id},
				"Added document %q to %q", id, name)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", `Read document text from a file ("-" for stdin)`)
	return cmd
}

// documentText resolves the document body from arguments or a file. Giving
// both is an error.
func documentText(stdin io.Reader, args []string, file string) (string, error) {
	switch {
	case file != "" && len(args) > 0:
		return "", serrors.ValidationError("give the text either as arguments or with --file, not both")
	case file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", serrors.New(serrors.ErrCodeInvalidInput, fmt.Sprintf("cannot read %s", file), err)
		}
		return string(data), nil
	default:
		return strings.Join(args, " "), nil
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME DOC_ID",
		Short: "Remove a document from a corpus",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, done, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			if err := ops.RemoveDocument(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return a.acknowledge(cmd, daemon.OKResult{Status: "ok", Name: args[0], DocID: args[1]},
				"Removed document %q from %q", args[1], args[0])
		},
	}
}

func newDocsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "docs NAME",
		Short: "List the document ids of a corpus in insertion order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, done, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			ids, err := ops.ListDocuments(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := a.writer(cmd)
			if out.JSON() {
				if ids == nil {
					ids = []string{}
				}
				return out.Encode(daemon.DocumentsResult{Name: args[0], DocIDs: ids})
			}
			out.List(ids, "No documents.")
			return nil
		},
	}
}
