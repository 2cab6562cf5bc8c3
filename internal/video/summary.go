package video

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

var genericIntros = []string{
	"I found some great videos for you:",
	"Here are some YouTube videos that I discovered:",
	"Based on your search, I found these videos:",
	"I've searched YouTube and found these videos:",
	"Check out these videos:",
}

var queryIntros = []string{
	"I've found some great videos about %s! Here they are:",
	"Here are some YouTube videos on %s that might help you:",
	"I searched YouTube for '%s' and found these videos:",
	"Based on your interest in %s, these videos might be helpful:",
	"Check out these videos about %s:",
}

const (
	genericClosing = "Do any of these look helpful?"
	queryClosing   = "Is there anything specific from these videos you'd like to know more about?"
)

// Picker chooses an index in [0, n).
type Picker func(n int) int

// Summarize renders refs as a chat message. pick selects the intro phrase; a
// nil pick uses math/rand.
func Summarize(refs []Reference, query string, pick Picker) string {
	if len(refs) == 0 {
		return fmt.Sprintf("I searched for videos about '%s' but couldn't find any matches. Would you like to try with different keywords?", query)
	}
	if pick == nil {
		pick = rand.IntN
	}

	intro, closing := genericIntros[pick(len(genericIntros))], genericClosing
	if query != "" {
		intro, closing = fmt.Sprintf(queryIntros[pick(len(queryIntros))], query), queryClosing
	}

	lines := make([]string, 0, len(refs))
	for i, r := range refs {
		lines = append(lines, fmt.Sprintf("Video %d: %s", i+1, r.URL))
	}
	return intro + "\n\n" + strings.Join(lines, "\n") + "\n\n" + closing
}
