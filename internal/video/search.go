package video

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/alris-cli/internal/network"
)

// Searcher returns raw candidates for a query. Candidates are unvalidated.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

const (
	youtubeOrigin   = "https://www.youtube.com"
	maxResultsBytes = 8 << 20
)

// resultURLPattern finds the watch and shorts links embedded in the initial
// page data of a results page.
var resultURLPattern = regexp.MustCompile(`"url":"(/(?:watch\?v=|shorts/)[^"]+)"`)

// SearcherConfig configures the results-page scraper.
type SearcherConfig struct {
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
}

// YouTubeSearcher scrapes the public results page. Requests are throttled
// by a token bucket shared by every caller.
type YouTubeSearcher struct {
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
	logger  *zap.Logger
}

// NewYouTubeSearcher creates a searcher. The client should carry a cookie jar
// so consent cookies survive between searches.
func NewYouTubeSearcher(client *http.Client, cfg SearcherConfig, logger *zap.Logger) *YouTubeSearcher {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = youtubeOrigin
	}
	return &YouTubeSearcher{
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		baseURL: base,
		logger:  logger.Named("youtube_searcher"),
	}
}

// Search fetches the results page for query and returns up to limit raw
// candidates in page order. Short-form links are included; the resolver
// rejects them.
func (s *YouTubeSearcher) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("search throttled: %w", err)
	}

	endpoint := s.baseURL + "/results?search_query=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("User-Agent", network.DefaultUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResultsBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read search results: %w", err)
	}

	candidates := extractCandidates(string(body), limit)
	s.logger.Debug("Search returned candidates.", zap.String("query", query), zap.Int("count", len(candidates)))
	return candidates, nil
}

// extractCandidates pulls distinct link suffixes from a results page.
func extractCandidates(page string, limit int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range resultURLPattern.FindAllStringSubmatch(page, -1) {
		if limit > 0 && len(out) >= limit {
			break
		}
		suffix := strings.ReplaceAll(m[1], `\u0026`, "&")
		if _, dup := seen[suffix]; dup {
			continue
		}
		seen[suffix] = struct{}{}
		out = append(out, youtubeOrigin+suffix)
	}
	return out
}
