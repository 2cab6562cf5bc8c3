// File: cmd/history.go
package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/alris-cli/internal/store"
)

// Allows for mocking in tests.
var openHistory = store.Open

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	historyCmd := &cobra.Command{
		Use:   "history <thread-id>",
		Short: "Show the recorded commands of a conversation thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := openHistory(ctx, opts.cfg.Database, opts.logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			entries, err := repo.List(ctx, args[0], limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			if len(entries) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No history for thread %s.\n", args[0])
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tINTENT\tSTATUS\tCOMMAND")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.CreatedAt.Local().Format(time.DateTime), e.Intent, e.Status, e.Command)
			}
			return tw.Flush()
		},
	}

	historyCmd.Flags().IntVarP(&limit, "limit", "n", store.DefaultListLimit, "Maximum number of entries to show")
	historyCmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	historyCmd.AddCommand(newHistoryClearCmd(opts))
	return historyCmd
}

func newHistoryClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <thread-id>",
		Short: "Delete every recorded command of a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := openHistory(ctx, opts.cfg.Database, opts.logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.Clear(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared thread %s.\n", args[0])
			return nil
		},
	}
}
