// Package rodsession implements browser.Driver with go-rod. It is the
// alternative to the chromedp backend, selected with browser.backend=rod.
package rodsession

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/internal/browser"
	"github.com/xkilldash9x/alris-cli/internal/config"
)

const (
	defaultElementTimeout    = 10 * time.Second
	defaultNavigationTimeout = 30 * time.Second
)

type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	cfg    config.BrowserConfig
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ browser.Driver = (*Session)(nil)

// NewLauncher translates cfg into rod launcher flags.
func NewLauncher(cfg config.BrowserConfig) *launcher.Launcher {
	l := launcher.New().Headless(cfg.Headless)
	if cfg.ExecPath != "" {
		l = l.Bin(cfg.ExecPath)
	}
	if cfg.IgnoreTLSErrors {
		l = l.Set(flags.Flag("ignore-certificate-errors")).Set(flags.Flag("allow-insecure-localhost"))
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		l = l.Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", cfg.ViewportWidth, cfg.ViewportHeight))
	}
	for _, raw := range cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(strings.TrimSpace(raw), "-"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			l = l.Set(flags.Flag(name), value)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}

// New launches chromium through rod and opens a blank page.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	log := logger.Named("rod")

	l := NewLauncher(cfg).Context(context.WithoutCancel(ctx))
	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	s := &Session{launcher: l, cfg: cfg, logger: log}

	b := rod.New().ControlURL(controlURL).Context(context.WithoutCancel(ctx))
	if err := b.Connect(); err != nil {
		s.Close()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	s.browser = b

	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	s.page = page

	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		if err := (proto.EmulationSetDeviceMetricsOverride{
			Width:             cfg.ViewportWidth,
			Height:            cfg.ViewportHeight,
			DeviceScaleFactor: 1.0,
		}).Call(page); err != nil {
			log.Warn("Failed to set viewport.", zap.Error(err))
		}
	}
	if cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent}); err != nil {
			log.Warn("Failed to override user agent.", zap.Error(err))
		}
	}

	log.Info("Browser session started.", zap.String("control_url", controlURL), zap.Bool("headless", cfg.Headless))
	return s, nil
}

// Factory adapts New to the pool's lazy constructor.
func Factory(cfg config.BrowserConfig, logger *zap.Logger) browser.Factory {
	return func(ctx context.Context) (browser.Driver, error) {
		return New(ctx, cfg, logger)
	}
}

// scoped returns the page bound to ctx with a deadline. Call done when finished.
func (s *Session) scoped(ctx context.Context, d time.Duration) (*rod.Page, func()) {
	p := s.page.Context(ctx).Timeout(d)
	return p, func() { p.CancelTimeout() }
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

func (s *Session) Navigate(ctx context.Context, url string) error {
	p, done := s.scoped(ctx, s.navigationTimeout())
	defer done()
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("failed waiting for %s to load: %w", url, err)
	}
	return nil
}

func (s *Session) QueryAll(ctx context.Context, selector string) ([]browser.Handle, error) {
	raw, err := s.Evaluate(ctx, browser.ScriptTagElements, selector)
	if err != nil {
		return nil, fmt.Errorf("failed to query '%s': %w", selector, err)
	}
	return browser.DecodeHandles(raw)
}

func (s *Session) ReadAttribute(ctx context.Context, h browser.Handle, name string) (string, bool, error) {
	raw, err := s.Evaluate(ctx, browser.ScriptReadAttribute, string(h), name)
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
	_, err := s.Evaluate(ctx, browser.ScriptSetValue, string(h), value)
	return err
}

func (s *Session) SetChecked(ctx context.Context, h browser.Handle, checked bool) error {
	_, err := s.Evaluate(ctx, browser.ScriptSetChecked, string(h), checked)
	return err
}

func (s *Session) SelectOption(ctx context.Context, h browser.Handle, value string) error {
	_, err := s.Evaluate(ctx, browser.ScriptSelectOption, string(h), value)
	return err
}

func (s *Session) Click(ctx context.Context, h browser.Handle) error {
	p, done := s.scoped(ctx, s.elementTimeout())
	defer done()

	el, err := p.Element(string(h))
	if err != nil {
		return fmt.Errorf("failed to find '%s': %w", h, err)
	}
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("failed to scroll to '%s': %w", h, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click '%s': %w", h, err)
	}
	return nil
}

func (s *Session) Evaluate(ctx context.Context, fn string, args ...any) (json.RawMessage, error) {
	p, done := s.scoped(ctx, s.elementTimeout())
	defer done()

	res, err := p.Evaluate(rod.Eval(fn, args...).ByPromise())
	if err != nil {
		return nil, fmt.Errorf("script evaluation failed: %w", err)
	}
	out := res.Value.JSON("", "")
	if out == "" {
		out = "null"
	}
	return json.RawMessage(out), nil
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	p, done := s.scoped(ctx, s.navigationTimeout())
	defer done()

	buf, err := p.Screenshot(false, &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng})
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// Close disconnects from and kills the browser. Safe to call twice.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.browser != nil {
			s.closeErr = s.browser.Close()
		}
		if s.launcher != nil {
			s.launcher.Kill()
			s.launcher.Cleanup()
		}
		s.logger.Info("Browser session closed.")
	})
	return s.closeErr
}
