package formfill

import (
	"context"
	_ "embed"
	"fmt"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/alris-cli/internal/browser"
)

const (
	fieldAttr = "data-alris-field"
	formAttr  = "data-alris-form"

	// formSelector addresses the form tagged by the last discovery.
	formSelector = "form[" + formAttr + "]"
)

//go:embed js_scripts/discover.js
var discoverScript string

// scrapeResult is the output of the embedded discovery script.
type scrapeResult struct {
	Found  bool              `json:"found"`
	Fields []DiscoveredField `json:"fields"`
}

// Discover scrapes the first form on the current page. It reports found=false
// when the page has no form at all, which is distinct from a form without
// inputs.
func Discover(ctx context.Context, d browser.Driver) (fields []DiscoveredField, found bool, err error) {
	raw, err := d.Evaluate(ctx, discoverScript, fieldAttr, formAttr)
	if err != nil {
		return nil, false, fmt.Errorf("failed to scrape form fields: %w", err)
	}

	var res scrapeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, false, fmt.Errorf("failed to decode scraped form fields: %w", err)
	}
	return res.Fields, res.Found, nil
}

// FieldSummary is the user-facing description of one discovered input.
type FieldSummary struct {
	FieldName string `json:"field_name"`
	Label     string `json:"label"`
}

// Summaries describes fields for people choosing what to fill in.
func Summaries(fields []DiscoveredField) []FieldSummary {
	out := make([]FieldSummary, 0, len(fields))
	for _, f := range fields {
		label := firstNonEmpty(f.Label, f.Placeholder, f.Name, f.ElementID, "Unknown Field")
		out = append(out, FieldSummary{
			FieldName: firstNonEmpty(f.Name, f.ElementID, f.Placeholder, label),
			Label:     label,
		})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
