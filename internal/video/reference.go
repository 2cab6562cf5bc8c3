// Package video turns raw search candidates into canonical video references
// and renders them for the user.
package video

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/api/schemas"
)

const (
	watchMarker  = "watch?v="
	shortsMarker = "/shorts/"
	idLength     = 11

	// CanonicalPrefix starts every canonical video URL.
	CanonicalPrefix = "https://www.youtube.com/watch?v="
)

// Reference is a validated video. URL is always CanonicalPrefix + ID.
type Reference struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ParseCandidate validates one raw candidate, such as a bare id, a watch URL
// or a path suffix. Every rejection wraps schemas.ErrCandidateInvalid.
func ParseCandidate(c string) (Reference, error) {
	if strings.Contains(c, shortsMarker) {
		return Reference{}, fmt.Errorf("%w: short-form video %q", schemas.ErrCandidateInvalid, c)
	}

	var id string
	if i := strings.Index(c, watchMarker); i >= 0 {
		id = c[i+len(watchMarker):]
		if amp := strings.IndexByte(id, '&'); amp >= 0 {
			id = id[:amp]
		}
	} else {
		id = strings.TrimSpace(c)
	}

	if len(id) != idLength {
		return Reference{}, fmt.Errorf("%w: id %q is not %d characters", schemas.ErrCandidateInvalid, id, idLength)
	}
	return Reference{ID: id, URL: CanonicalPrefix + id}, nil
}

// Resolver validates and deduplicates candidate lists.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger.Named("video_resolver")}
}

// Resolve keeps the valid candidates in input order, dropping later
// duplicates of a URL. Invalid candidates are logged and skipped.
func (r *Resolver) Resolve(candidates []string) []Reference {
	seen := make(map[string]struct{}, len(candidates))
	refs := make([]Reference, 0, len(candidates))
	for _, c := range candidates {
		ref, err := ParseCandidate(c)
		if err != nil {
			r.logger.Debug("Skipping video candidate.", zap.String("candidate", c), zap.Error(err))
			continue
		}
		if _, dup := seen[ref.URL]; dup {
			continue
		}
		seen[ref.URL] = struct{}{}
		refs = append(refs, ref)
	}
	return refs
}

// URLs projects the canonical URLs.
func URLs(refs []Reference) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.URL)
	}
	return out
}
