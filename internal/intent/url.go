package intent

import (
	"regexp"
	"strings"
)

var bareDomainPattern = regexp.MustCompile(`(?i)^[a-z0-9-]+(?:\.[a-z0-9-]+)*\.(?:com|org|net|io|dev|co|app|ng|edu|gov|info|me|ai)(?:[/:?#]\S*)?$`)

// ExtractURL returns the first URL-looking token in text. Scheme and "www."
// links are preferred over bare domains; tokens containing "@" are never
// treated as URLs.
func ExtractURL(text string) string {
	tokens := strings.Fields(text)
	for _, tok := range tokens {
		t := trimToken(tok)
		lower := strings.ToLower(t)
		if strings.Contains(t, "@") {
			continue
		}
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "www.") {
			return t
		}
	}
	for _, tok := range tokens {
		t := trimToken(tok)
		if !strings.Contains(t, "@") && bareDomainPattern.MatchString(t) {
			return t
		}
	}
	return ""
}

func trimToken(tok string) string {
	return strings.TrimRight(strings.TrimLeft(tok, `"'(<`), `"'.,;:!?)>`)
}
