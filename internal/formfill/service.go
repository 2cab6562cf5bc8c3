package formfill

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/api/schemas"
	"github.com/xkilldash9x/alris-cli/internal/browser"
)

// ErrMissingURL is returned when a fill or discovery request has no target.
var ErrMissingURL = errors.New("a form URL is required")

// Sessions hands out exclusive use of the shared driver. *browser.Pool
// satisfies it.
type Sessions interface {
	With(ctx context.Context, fn func(browser.Driver) error) error
}

// Service runs complete fill and discovery flows against a URL.
type Service struct {
	sessions      Sessions
	filler        *Filler
	logger        *zap.Logger
	screenshotDir string
	now           func() time.Time
}

// NewService creates a form service. An empty screenshotDir keeps screenshots
// in memory only.
func NewService(sessions Sessions, screenshotDir string, logger *zap.Logger) *Service {
	return &Service{
		sessions:      sessions,
		filler:        NewFiller(logger),
		logger:        logger.Named("form_service"),
		screenshotDir: screenshotDir,
		now:           time.Now,
	}
}

// NormalizeURL trims raw and gives scheme-less "www." hosts an https scheme.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(u), "www.") {
		return "https://" + u
	}
	return u
}

// FillURL navigates to rawURL, fills the first form with data and submits it.
// The returned report is non-nil whenever the page was reached, including
// when the result is ErrNoFieldsMatched.
func (s *Service) FillURL(ctx context.Context, rawURL string, data map[string]any) (*FillReport, error) {
	target := NormalizeURL(rawURL)
	if target == "" {
		return nil, ErrMissingURL
	}

	var report *FillReport
	err := s.sessions.With(ctx, func(d browser.Driver) error {
		if err := s.navigate(ctx, d, target); err != nil {
			return err
		}
		var fillErr error
		report, fillErr = s.FillCurrent(ctx, d, FieldsFromMap(data), nil)
		if report != nil {
			s.capture(ctx, d, report)
		}
		return fillErr
	})
	return report, err
}

// FillCurrent fills the page the driver is already on. Without a form on the
// page it falls back to direct selector lookups.
func (s *Service) FillCurrent(ctx context.Context, d browser.Driver, fields []UserField, selectors map[string]string) (*FillReport, error) {
	if len(selectors) > 0 {
		return s.filler.FillBySelectors(ctx, d, fields, selectors)
	}

	discovered, found, err := Discover(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schemas.ErrCollaboratorUnavailable, err)
	}
	if !found {
		s.logger.Info("No form found on the page, using direct selector lookups.")
		return s.filler.FillBySelectors(ctx, d, fields, nil)
	}
	s.logger.Debug("Discovered form fields.", zap.Int("count", len(discovered)))
	return s.filler.Fill(ctx, d, fields, discovered)
}

// DiscoverURL navigates to rawURL and describes the fields of its first form.
func (s *Service) DiscoverURL(ctx context.Context, rawURL string) ([]FieldSummary, error) {
	target := NormalizeURL(rawURL)
	if target == "" {
		return nil, ErrMissingURL
	}

	var summaries []FieldSummary
	err := s.sessions.With(ctx, func(d browser.Driver) error {
		if err := s.navigate(ctx, d, target); err != nil {
			return err
		}
		fields, found, err := Discover(ctx, d)
		if err != nil {
			return fmt.Errorf("%w: %v", schemas.ErrCollaboratorUnavailable, err)
		}
		if !found {
			s.logger.Warn("No form found on the page.", zap.String("url", target))
		}
		summaries = Summaries(fields)
		return nil
	})
	return summaries, err
}

func (s *Service) navigate(ctx context.Context, d browser.Driver, target string) error {
	s.logger.Info("Navigating to form.", zap.String("url", target))
	if err := d.Navigate(ctx, target); err != nil {
		return fmt.Errorf("%w: failed to navigate to %s: %v", schemas.ErrCollaboratorUnavailable, target, err)
	}
	return nil
}

// capture attaches a post-fill screenshot. Failures only cost the screenshot.
func (s *Service) capture(ctx context.Context, d browser.Driver, report *FillReport) {
	png, err := d.Screenshot(ctx)
	if err != nil {
		s.logger.Warn("Failed to capture form screenshot.", zap.Error(err))
		return
	}
	report.Screenshot = png

	if s.screenshotDir == "" {
		return
	}
	if err := os.MkdirAll(s.screenshotDir, 0o755); err != nil {
		s.logger.Warn("Failed to create screenshot directory.", zap.String("dir", s.screenshotDir), zap.Error(err))
		return
	}
	name := filepath.Join(s.screenshotDir, fmt.Sprintf("form_%s.png", s.now().Format("20060102_150405")))
	if err := os.WriteFile(name, png, 0o644); err != nil {
		s.logger.Warn("Failed to write form screenshot.", zap.String("path", name), zap.Error(err))
		return
	}
	s.logger.Info("Saved form screenshot.", zap.String("path", name))
}
