package intent

import (
	"regexp"
	"strings"
)

// videoURLPattern matches direct links to a single video, with or without a
// scheme.
var videoURLPattern = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.|m\.)?(?:youtube\.com/(?:watch\?v=|shorts/|embed/)|youtu\.be/)[A-Za-z0-9_-]+(?:[?&][^\s]*)?`)

// searchPhrasings are the fixed search requests answered without a
// classification call. Each captures the query in group 1. Order matters:
// the "videos on youtube" form must win over the generic "on youtube" one.
var searchPhrasings = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(?:please\s+|can you\s+|could you\s+)?search\s+for\s+(.+?)\s+videos?\s+on\s+youtube\b`),
	regexp.MustCompile(`(?i)^\s*(?:please\s+|can you\s+|could you\s+)?(?:search|look\s+up)\s+youtube\s+for\s+(.+)$`),
	regexp.MustCompile(`(?i)^\s*(?:please\s+|can you\s+|could you\s+)?youtube\s+search\s+(?:for\s+)?(.+)$`),
	regexp.MustCompile(`(?i)^\s*(?:please\s+|can you\s+|could you\s+)?(?:play|watch|find|show)\s+(?:me\s+)?(.+?)\s+on\s+youtube\b`),
	regexp.MustCompile(`(?i)^\s*(?:please\s+|can you\s+|could you\s+)?(?:search(?:\s+for)?|look\s+up)\s+(.+?)\s+on\s+youtube\b`),
}

// strippedWords are removed when a search query has to be derived without a
// matching phrasing.
var strippedWords = map[string]struct{}{
	"youtube": {}, "search": {}, "play": {}, "watch": {}, "find": {}, "show": {},
	"me": {}, "for": {}, "on": {}, "look": {}, "up": {}, "videos": {}, "video": {},
}

// DetectVideoURL returns the first direct video link in command, exactly as
// written, or "".
func DetectVideoURL(command string) string {
	return videoURLPattern.FindString(command)
}

// IsVideoSearch reports whether command is one of the fixed search phrasings.
func IsVideoSearch(command string) bool {
	_, ok := matchSearch(command)
	return ok
}

// ExtractSearchQuery derives the search query of command by dropping the
// platform and action words.
func ExtractSearchQuery(command string) string {
	if q, ok := matchSearch(command); ok {
		return q
	}
	var kept []string
	for _, w := range strings.Fields(command) {
		if _, drop := strippedWords[strings.ToLower(strings.Trim(w, ".,!?"))]; !drop {
			kept = append(kept, w)
		}
	}
	return cleanQuery(strings.Join(kept, " "))
}

func matchSearch(command string) (string, bool) {
	for _, re := range searchPhrasings {
		if m := re.FindStringSubmatch(command); m != nil {
			if q := cleanQuery(m[1]); q != "" {
				return q, true
			}
		}
	}
	return "", false
}

func cleanQuery(q string) string {
	return strings.Trim(strings.TrimSpace(q), ` "'.,!?`)
}
