// internal/browser/session/session.go
// Package session implements browser.Driver on top of chromedp.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/internal/browser"
	"github.com/xkilldash9x/alris-cli/internal/config"
)

const (
	defaultElementTimeout    = 10 * time.Second
	defaultNavigationTimeout = 30 * time.Second
)

// Session is a single chromedp tab inside its own browser process.
type Session struct {
	ctx    context.Context // Carries the CDP target. Every action derives from it.
	cancel context.CancelFunc

	allocCancel context.CancelFunc

	cfg    config.BrowserConfig
	logger *zap.Logger

	closeOnce sync.Once
}

var _ browser.Driver = (*Session)(nil)

// DefaultAllocatorOptions builds the exec allocator flags for cfg on top of
// chromedp's defaults.
func DefaultAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.IgnoreTLSErrors {
		opts = append(opts,
			chromedp.Flag("ignore-certificate-errors", true),
			chromedp.Flag("allow-insecure-localhost", true),
		)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight))
	}
	for _, arg := range cfg.Args {
		name, value, hasValue := cutFlag(arg)
		if name == "" {
			continue
		}
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}

// New launches a browser and opens the tab every call will drive.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	log := logger.Named("chromedp")

	// The browser must outlive the request that happened to start it.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), DefaultAllocatorOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Sugar().Debugf),
		chromedp.WithErrorf(log.Sugar().Errorf),
	)

	s := &Session{
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		cfg:         cfg,
		logger:      log,
	}

	// An empty Run starts the process and attaches to the first tab.
	startCtx, startCancel := CombineContext(tabCtx, ctx)
	defer startCancel()
	if err := chromedp.Run(startCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	log.Info("Browser session started.", zap.Bool("headless", cfg.Headless))
	return s, nil
}

// Factory adapts New to the pool's lazy constructor.
func Factory(cfg config.BrowserConfig, logger *zap.Logger) browser.Factory {
	return func(ctx context.Context) (browser.Driver, error) {
		return New(ctx, cfg, logger)
	}
}

func (s *Session) elementTimeout() time.Duration {
	if s.cfg.ElementTimeout > 0 {
		return s.cfg.ElementTimeout
	}
	return defaultElementTimeout
}

func (s *Session) navigationTimeout() time.Duration {
	if s.cfg.NavigationTimeout > 0 {
		return s.cfg.NavigationTimeout
	}
	return defaultNavigationTimeout
}

// run executes actions on the tab, bounded by ctx and timeout.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	opCtx, timeoutCancel := context.WithTimeout(opCtx, timeout)
	defer timeoutCancel()
	return chromedp.Run(opCtx, actions...)
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating.", zap.String("url", url))
	if err := s.run(ctx, s.navigationTimeout(), chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (s *Session) QueryAll(ctx context.Context, selector string) ([]browser.Handle, error) {
	raw, err := s.call(ctx, browser.ScriptTagElements, selector)
	if err != nil {
		return nil, fmt.Errorf("failed to query '%s': %w", selector, err)
	}
	return browser.DecodeHandles(raw)
}

func (s *Session) ReadAttribute(ctx context.Context, h browser.Handle, name string) (string, bool, error) {
	raw, err := s.call(ctx, browser.ScriptReadAttribute, string(h), name)
	if err != nil {
		return "", false, fmt.Errorf("failed to read attribute '%s': %w", name, err)
	}
	var res browser.AttributeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", false, fmt.Errorf("failed to decode attribute '%s': %w", name, err)
	}
	return res.Value, res.Present, nil
}

func (s *Session) SetValue(ctx context.Context, h browser.Handle, value string) error {
	_, err := s.call(ctx, browser.ScriptSetValue, string(h), value)
	return err
}

func (s *Session) SetChecked(ctx context.Context, h browser.Handle, checked bool) error {
	_, err := s.call(ctx, browser.ScriptSetChecked, string(h), checked)
	return err
}

func (s *Session) SelectOption(ctx context.Context, h browser.Handle, value string) error {
	_, err := s.call(ctx, browser.ScriptSelectOption, string(h), value)
	return err
}

func (s *Session) Click(ctx context.Context, h browser.Handle) error {
	sel := string(h)
	err := s.run(ctx, s.elementTimeout(),
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to click '%s': %w", sel, err)
	}
	return nil
}

func (s *Session) Evaluate(ctx context.Context, fn string, args ...any) (json.RawMessage, error) {
	return s.call(ctx, fn, args...)
}

// call evaluates fn with args and returns the by-value result.
func (s *Session) call(ctx context.Context, fn string, args ...any) (json.RawMessage, error) {
	expr, err := browser.Invocation(fn, args...)
	if err != nil {
		return nil, err
	}
	var res []byte
	err = s.run(ctx, s.elementTimeout(),
		chromedp.Evaluate(expr, &res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true).WithAwaitPromise(true)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("script evaluation failed: %w", err)
	}
	return browser.UnwrapInvocation(res)
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, s.navigationTimeout(), chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// Close shuts down the tab and then the browser process. Safe to call twice.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.allocCancel()
		s.logger.Info("Browser session closed.")
	})
	return nil
}
