// File: cmd/app.go
// Description: Builds the runtime component graph shared by every command
// that processes requests.

package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/api/schemas"
	"github.com/xkilldash9x/alris-cli/internal/agent"
	"github.com/xkilldash9x/alris-cli/internal/browser"
	"github.com/xkilldash9x/alris-cli/internal/browser/rodsession"
	"github.com/xkilldash9x/alris-cli/internal/browser/session"
	"github.com/xkilldash9x/alris-cli/internal/config"
	"github.com/xkilldash9x/alris-cli/internal/conversation"
	"github.com/xkilldash9x/alris-cli/internal/formfill"
	"github.com/xkilldash9x/alris-cli/internal/intent"
	"github.com/xkilldash9x/alris-cli/internal/llmclient"
	"github.com/xkilldash9x/alris-cli/internal/mcp"
	"github.com/xkilldash9x/alris-cli/internal/network"
	"github.com/xkilldash9x/alris-cli/internal/orchestrator"
	"github.com/xkilldash9x/alris-cli/internal/store"
	"github.com/xkilldash9x/alris-cli/internal/video"
)

// CommandProcessor runs one command end to end.
type CommandProcessor interface {
	ProcessCommand(ctx context.Context, command, threadID string) schemas.CommandResponse
}

// components is everything a serving command needs. Close releases them in
// reverse order of construction.
type components struct {
	Commands CommandProcessor
	History  store.Repository
	Videos   mcp.VideoSearcher
	Forms    mcp.FormService

	closers []func() error
}

func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Allows for mocking in tests.
var newComponents = buildComponents

// buildComponents wires the pipeline. Nothing here launches a browser; the
// pool starts one on first use.
func buildComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *components, err error) {
	c := &components{}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	// 1. Models.
	llm, err := llmclient.NewClient(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	c.closers = append(c.closers, llm.Close)
	fast := llmclient.NewCompleter(llm, schemas.TierFast, schemas.GenerationOptions{Temperature: 0.1, ForceJSONFormat: true})
	powerful := llmclient.NewCompleter(llm, schemas.TierPowerful, schemas.GenerationOptions{Temperature: 0.2})

	// 2. Browser.
	pool := browser.NewPool(browserFactory(cfg.Browser, logger), logger)
	c.closers = append(c.closers, pool.Close)

	// 3. Outbound HTTP and video search.
	httpCfg := network.NewDefaultClientConfig()
	if cfg.Network.Timeout > 0 {
		httpCfg.RequestTimeout = cfg.Network.Timeout
	}
	if cfg.Network.DialTimeout > 0 {
		httpCfg.DialTimeout = cfg.Network.DialTimeout
	}
	httpCfg.IgnoreTLSErrors = cfg.Network.IgnoreTLSErrors
	httpCfg.EnableCookies = cfg.Network.EnableCookies
	httpCfg.Logger = logger
	httpClient, err := network.NewClient(httpCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	searcher := video.NewYouTubeSearcher(httpClient, video.SearcherConfig{
		BaseURL:           cfg.Video.BaseURL,
		RequestsPerSecond: cfg.Video.RequestsPerSecond,
		Burst:             cfg.Video.Burst,
	}, logger)
	videos := video.NewService(searcher, cfg.Video.Limit, logger)
	forms := formfill.NewService(pool, cfg.Forms.ScreenshotDir, logger)

	// 4. Execution loop.
	tools := agent.DefaultTools(pool, videos, forms)
	runner := agent.NewRunner(powerful, tools, agent.NewMemory(cfg.Agent.MemoryMessages), cfg.Agent, logger)

	// 5. History.
	history, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	c.closers = append(c.closers, history.Close)

	// 6. Orchestrator.
	loc, err := cfg.Calendar.Location()
	if err != nil {
		return nil, err
	}
	orch, err := orchestrator.New(orchestrator.Deps{
		Router:    intent.NewRouter(fast, logger),
		Extractor: intent.NewExtractor(fast, cfg.Forms.Defaults, cfg.Calendar.DefaultDuration, logger),
		Videos:    videos,
		Forms:     forms,
		Executor:  runner,
		Reducer:   conversation.NewReducer(videos, logger),
		History:   history,
		Location:  loc,
	}, logger)
	if err != nil {
		return nil, err
	}

	c.Commands = orch
	c.History = history
	c.Videos = videos
	c.Forms = forms
	return c, nil
}

func browserFactory(cfg config.BrowserConfig, logger *zap.Logger) browser.Factory {
	if cfg.Backend == "rod" {
		return rodsession.Factory(cfg, logger)
	}
	return session.Factory(cfg, logger)
}
