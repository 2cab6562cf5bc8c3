// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"

	json "github.com/json-iterator/go"
)

// fenceRegex extracts the body of a markdown code fence. \x60 is a backtick,
// which a Go raw string cannot contain.
var fenceRegex = regexp.MustCompile("(?s)\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60")

// ExtractJSON isolates the JSON payload of a model response. Markdown fences
// are stripped first; if the remainder still is not a bare object or array,
// the span from the first opening bracket to the last closing one is taken.
func ExtractJSON(response string) string {
	s := strings.TrimSpace(response)

	// 1. Markdown wrapping, the most common case.
	if m := fenceRegex.FindStringSubmatch(s); len(m) > 1 {
		s = strings.TrimSpace(m[1])
	}

	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return s
	}

	// 2. Structure embedded in conversational text. Objects take priority.
	if fb, lb := strings.Index(s, "{"), strings.LastIndex(s, "}"); fb != -1 && lb > fb {
		return s[fb : lb+1]
	}
	if fb, lb := strings.Index(s, "["), strings.LastIndex(s, "]"); fb != -1 && lb > fb {
		return s[fb : lb+1]
	}
	return s
}

// ParseJSONResponse parses an LLM response into T, tolerating markdown fences
// and surrounding prose.
func ParseJSONResponse[T any](response string) (*T, error) {
	payload := ExtractJSON(response)

	var result T
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, truncateString(payload, 500))
	}
	return &result, nil
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	// Simple truncation; does not account for rune boundaries but sufficient for error logging.
	return s[:maxLen] + "..."
}
