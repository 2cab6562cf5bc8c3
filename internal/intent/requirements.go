package intent

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/alris-cli/internal/normalize"
)

const missingURLMessage = "I need the URL of the form you want me to fill. Could you share the link to the form?"

// CheckFormRequirements returns nil when the form may be filled. Otherwise it
// explains what is missing: first the URL, then anything the model itself
// flagged, then the name and email, which every form fill requires.
func CheckFormRequirements(ext *FormExtraction) *Clarification {
	if ext == nil {
		return &Clarification{Message: missingURLMessage, Fields: map[string]any{}}
	}
	fields := ext.Fields()

	if strings.TrimSpace(ext.URL) == "" {
		return &Clarification{Message: missingURLMessage, Fields: fields}
	}
	if ext.NeedsClarification != "" {
		return &Clarification{Message: ext.NeedsClarification, Fields: fields}
	}

	nameOK := hasName(ext.FormData)
	emailOK := hasEmail(ext.FormData)
	switch {
	case !nameOK && !emailOK:
		return &Clarification{Message: "Name and email are required but not provided. Please provide your name and email.", Fields: fields}
	case !nameOK:
		return &Clarification{Message: fmt.Sprintf("I have your email but still need your name to fill the form at %s. What name should I use?", ext.URL), Fields: fields}
	case !emailOK:
		return &Clarification{Message: fmt.Sprintf("I have your name but still need your email address to fill the form at %s. What email should I use?", ext.URL), Fields: fields}
	}
	return nil
}

// Keys that count as the submitter's name or email address, compared after
// normalize.Key. A first name only counts together with a last name.
var (
	nameKeys  = map[string]bool{"name": true, "fullname": true, "yourname": true}
	emailKeys = map[string]bool{"email": true, "emailaddress": true, "e-mail": true, "youremail": true, "mail": true}
)

func hasName(data map[string]any) bool {
	var first, last bool
	for k, v := range data {
		if !nonEmpty(v) {
			continue
		}
		switch key := normalize.Key(k); {
		case nameKeys[key]:
			return true
		case key == "firstname":
			first = true
		case key == "lastname" || key == "surname":
			last = true
		}
	}
	return first && last
}

func hasEmail(data map[string]any) bool {
	for k, v := range data {
		s, ok := v.(string)
		if ok && emailKeys[normalize.Key(k)] && strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

func nonEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(val) != ""
	case []any:
		return len(val) > 0
	case []string:
		return len(val) > 0
	default:
		return true
	}
}
