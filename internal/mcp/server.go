// File: internal/mcp/server.go
// Description: Exposes the command pipeline and its direct tools over the
// Model Context Protocol, on stdio or SSE.

package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"time"

	json "github.com/json-iterator/go"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/internal/config"
)

const shutdownTimeout = 5 * time.Second

// Tool is one MCP tool backed by the application's services.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// Server hosts the MCP runtime.
type Server struct {
	cfg       config.MCPConfig
	logger    *zap.Logger
	tools     map[string]Tool
	mcpServer *mcpserver.MCPServer
}

// NewServer creates the server and registers tools.
func NewServer(cfg config.MCPConfig, version string, logger *zap.Logger, tools ...Tool) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger.Named("mcp"),
		tools:  make(map[string]Tool, len(tools)),
		mcpServer: mcpserver.NewMCPServer(
			"alris",
			version,
			mcpserver.WithToolCapabilities(true),
			mcpserver.WithLogging(),
			mcpserver.WithRecovery(),
		),
	}
	for _, t := range tools {
		s.registerTool(t)
	}
	return s
}

// ToolNames lists the registered tools in name order.
func (s *Server) ToolNames() []string {
	names := make([]string, 0, len(s.tools))
	for n := range s.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ServeStdio speaks MCP over the given streams until ctx ends.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("MCP server listening on stdio.", zap.Int("tools", len(s.tools)))
	stdio := mcpserver.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, in, out)
}

// ServeSSE hosts the server over HTTP using SSE endpoints until ctx ends.
func (s *Server) ServeSSE(ctx context.Context) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}

	sseServer := mcpserver.NewSSEServer(s.mcpServer, mcpserver.WithBaseURL(s.cfg.BaseURL))
	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(l)
	}()
	s.logger.Info("MCP SSE server listening.", zap.String("address", l.Addr().String()))

	select {
	case <-ctx.Done():
		s.logger.Info("SSE server shutting down gracefully.")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) registerTool(tool Tool) {
	s.tools[tool.Name()] = tool

	schema, err := json.Marshal(tool.InputSchema())
	if err != nil {
		schema = []byte(`{"type":"object"}`)
	}
	s.mcpServer.AddTool(mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), schema), s.wrapTool(tool))
}

func (s *Server) wrapTool(tool Tool) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]any{}
		}

		result, err := tool.Execute(ctx, args)
		if err != nil {
			s.logger.Warn("Tool failed.", zap.String("tool", tool.Name()), zap.Error(err))
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent(fmt.Sprintf("tool %s failed: %v", tool.Name(), err))},
				IsError: true,
			}, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(string(marshalToolPayload(tool.Name(), result)))},
		}, nil
	}
}

func marshalToolPayload(toolName string, result any) []byte {
	payload, err := json.ConfigCompatibleWithStandardLibrary.Marshal(result)
	if err == nil {
		return payload
	}
	fallback, err := json.Marshal(map[string]any{
		"success": false,
		"error":   fmt.Sprintf("tool %s returned non-serializable payload: %v", toolName, err),
	})
	if err == nil {
		return fallback
	}
	return []byte(fmt.Sprintf(`{"success":false,"error":"tool %s failed to encode payload"}`, toolName))
}
