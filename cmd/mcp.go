// File: cmd/mcp.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/alris-cli/internal/mcp"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Speak the Model Context Protocol over stdio",
		Long: `Runs Alris as an MCP server on stdin/stdout so assistants such as Claude
Desktop or the Gemini CLI can call its tools. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			comps, err := newComponents(ctx, opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer comps.Close()

			server := mcp.NewServer(opts.cfg.MCP, Version, opts.logger,
				mcp.DefaultTools(comps.Commands, comps.Videos, comps.Forms)...)
			return server.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
