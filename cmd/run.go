// File: cmd/run.go
package cmd

import (
	"fmt"
	"io"
	"strings"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/alris-cli/api/schemas"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		threadID string
		asJSON   bool
	)

	runCmd := &cobra.Command{
		Use:   "run [command...]",
		Short: "Process a single natural language command",
		Example: `  alris run "play lofi hip hop on youtube"
  alris run --thread 7f0c "fill the form at https://example.com/signup with name Ada and email ada@example.com"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			comps, err := newComponents(ctx, opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer comps.Close()

			resp := comps.Commands.ProcessCommand(ctx, strings.Join(args, " "), threadID)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			printResponse(cmd.OutOrStdout(), resp)
			if resp.Intent == schemas.IntentError {
				return fmt.Errorf("command failed: %s", resp.Error)
			}
			return nil
		},
	}

	runCmd.Flags().StringVarP(&threadID, "thread", "t", "", "Conversation thread to continue (a new one is started when empty)")
	runCmd.Flags().BoolVar(&asJSON, "json", false, "Print the full response envelope as JSON")
	return runCmd
}

// printResponse renders an envelope for a terminal.
func printResponse(w io.Writer, resp schemas.CommandResponse) {
	res := resp.Result
	switch res.Status {
	case schemas.StatusClarificationNeeded:
		fmt.Fprintf(w, "? %s\n", res.Message)
	case schemas.StatusError:
		fmt.Fprintf(w, "! %s\n", res.Message)
	default:
		fmt.Fprintln(w, res.Message)
	}
	for _, u := range resp.VideoURLs {
		fmt.Fprintf(w, "  %s\n", u)
	}
	if res.Action != nil {
		params, _ := json.ConfigCompatibleWithStandardLibrary.MarshalIndent(res.Action.Parameters, "  ", "  ")
		fmt.Fprintf(w, "  action: %s %s\n", res.Action.ActionType, params)
	}
	fmt.Fprintf(w, "[thread %s]\n", resp.ThreadID)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
