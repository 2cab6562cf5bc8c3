// File: cmd/serve.go
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/alris-cli/internal/api"
	"github.com/xkilldash9x/alris-cli/internal/mcp"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr      string
		enableMCP bool
	)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and websocket API, and optionally MCP over SSE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("mcp") {
				cfg.MCP.Enabled = enableMCP
			}

			ctx := cmd.Context()
			comps, err := newComponents(ctx, cfg, opts.logger)
			if err != nil {
				return err
			}
			defer comps.Close()

			server, err := api.NewServer(cfg.Server, comps.Commands, comps.History, opts.logger)
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return server.ListenAndServe(gctx) })
			if cfg.MCP.Enabled {
				mcpServer := mcp.NewServer(cfg.MCP, Version, opts.logger,
					mcp.DefaultTools(comps.Commands, comps.Videos, comps.Forms)...)
				g.Go(func() error { return mcpServer.ServeSSE(gctx) })
			}

			opts.logger.Info("Alris is serving.",
				zap.String("api", cfg.Server.Addr),
				zap.Bool("mcp", cfg.MCP.Enabled))
			return g.Wait()
		},
	}

	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address for the HTTP API (overrides server.addr)")
	serveCmd.Flags().BoolVar(&enableMCP, "mcp", false, "Also serve MCP over SSE on mcp.addr")
	return serveCmd
}
