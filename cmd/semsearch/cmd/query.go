package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semsearch/internal/daemon"
	"github.com/Aman-CERP/semsearch/internal/index"
)

func newQueryCmd(a *app) *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "query NAME TEXT...",
		Short: "Rank the documents of a corpus against a query",
		Long: `Embed the query and rank every document of the corpus by cosine
similarity. An empty or missing corpus prints "No relevant documents found."`,
		Example: `  semsearch query notes how do cats show contentment
  semsearch query notes "sourdough starter" --top-k 5 --json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, text := args[0], strings.Join(args[1:], " ")

			ops, done, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			resp, err := ops.Query(cmd.Context(), name, text, topK)
			if err != nil {
				return err
			}

			out := a.writer(cmd)
			if out.JSON() {
				results := resp.Results
				if results == nil {
					results = []index.Result{}
				}
				return out.Encode(daemon.QueryResult{
					Name:    name,
					Results: results,
					Message: resp.Message,
					Text:    index.FormatResults(resp),
				})
			}
			out.Results(resp.Results, index.NoResultsMessage)
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Maximum number of results (default from config)")
	return cmd
}
