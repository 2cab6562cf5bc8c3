package video

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/api/schemas"
)

const (
	// DefaultLimit is how many candidates a search asks for.
	DefaultLimit = 5

	// ActionSearch names the action in tool outputs.
	ActionSearch = "youtube_search"

	invalidQueryMessage = "I need a valid search query to find videos for you. Could you please provide more details about what you're looking for?"
)

// ErrEmptyQuery is returned by Lookup for a blank query.
var ErrEmptyQuery = errors.New("search query is empty")

// Service runs validated video searches.
type Service struct {
	searcher Searcher
	resolver *Resolver
	limit    int
	pick     Picker
	logger   *zap.Logger
}

// NewService creates a video service.
func NewService(searcher Searcher, limit int, logger *zap.Logger) *Service {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Service{
		searcher: searcher,
		resolver: NewResolver(logger),
		limit:    limit,
		logger:   logger.Named("video_service"),
	}
}

// CleanQuery trims the query and strips one pair of surrounding double quotes.
func CleanQuery(q string) string {
	q = strings.TrimSpace(q)
	if len(q) >= 2 && strings.HasPrefix(q, `"`) && strings.HasSuffix(q, `"`) {
		q = strings.TrimSpace(q[1 : len(q)-1])
	}
	return q
}

// Search looks up videos and renders the user-facing result. It never
// returns an error; failures are error results with no URLs.
func (s *Service) Search(ctx context.Context, query string) schemas.ExecutionResult {
	q := CleanQuery(query)
	if q == "" {
		return schemas.ExecutionResult{Status: schemas.StatusError, Message: invalidQueryMessage}
	}

	s.logger.Info("Searching videos.", zap.String("query", q))
	urls, err := s.Lookup(ctx, q)
	if err != nil {
		s.logger.Error("Video search failed.", zap.String("query", q), zap.Error(err))
		return schemas.ErrorResult(
			fmt.Sprintf("I tried searching for videos about '%s', but encountered an issue with YouTube. Would you like to try a different search?", q),
			fmt.Errorf("%w: %v", schemas.ErrCollaboratorUnavailable, err),
		)
	}

	refs := make([]Reference, 0, len(urls))
	for _, u := range urls {
		refs = append(refs, Reference{ID: strings.TrimPrefix(u, CanonicalPrefix), URL: u})
	}
	s.logger.Info("Video search finished.", zap.Int("videos", len(refs)))
	return schemas.ExecutionResult{
		Status:    schemas.StatusSuccess,
		Message:   Summarize(refs, q, s.pick),
		VideoURLs: urls,
	}
}

// Lookup returns validated canonical URLs for query.
func (s *Service) Lookup(ctx context.Context, query string) ([]string, error) {
	q := CleanQuery(query)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	candidates, err := s.searcher.Search(ctx, q, s.limit)
	if err != nil {
		return nil, err
	}
	return URLs(s.resolver.Resolve(candidates)), nil
}

// ToolOutput renders a search result as the payload of a search_youtube tool
// message. video_urls is always present.
func ToolOutput(res schemas.ExecutionResult, query string) map[string]any {
	urls := res.VideoURLs
	if urls == nil {
		urls = []string{}
	}
	return map[string]any{
		"status":     string(res.Status),
		"action":     ActionSearch,
		"query":      CleanQuery(query),
		"message":    res.Message,
		"video_urls": urls,
	}
}
