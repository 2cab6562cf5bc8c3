package formfill

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/api/schemas"
	"github.com/xkilldash9x/alris-cli/internal/browser"
)

// fallbackSelectors lists the direct lookups tried, in order, when a page has
// no <form> to scrape.
func fallbackSelectors(key string) []string {
	k := cssString(key)
	return []string{
		`input[name="` + k + `"]`,
		`input[id="` + k + `"]`,
		`input[aria-label="` + k + `"]`,
		`textarea[name="` + k + `"]`,
		`textarea[id="` + k + `"]`,
	}
}

// FillBySelectors fills each user field through the first selector that finds
// an element. Keys present in explicit use exactly that selector; every other
// key uses the name/id/aria-label lookups. There is no form to scope to, so
// only a page-level submit control is clicked.
func (f *Filler) FillBySelectors(ctx context.Context, d browser.Driver, userFields []UserField, explicit map[string]string) (*FillReport, error) {
	report := &FillReport{Fields: make([]FieldOutcome, 0, len(userFields)), Fallback: true}
	matched := 0

	for _, uf := range userFields {
		selectors := fallbackSelectors(uf.Key)
		if sel, ok := explicit[uf.Key]; ok && sel != "" {
			selectors = []string{sel}
		}

		outcome := FieldOutcome{Key: uf.Key}
		for _, sel := range selectors {
			handles, err := d.QueryAll(ctx, sel)
			if err != nil || len(handles) == 0 {
				continue
			}
			matched++
			outcome.Matched = true
			outcome.Confidence = ConfidenceExact
			outcome.Target = sel
			if err := d.SetValue(ctx, handles[0], textValue(uf.Value)); err != nil {
				applyErr := &FieldApplyError{Key: uf.Key, Handle: handles[0], Kind: KindText, Err: err}
				outcome.Err = applyErr
				outcome.Error = applyErr.Error()
				f.logger.Warn("Could not fill field.", zap.String("key", uf.Key), zap.Error(err))
			} else {
				f.logger.Debug("Filled field by selector.", zap.String("key", uf.Key), zap.String("selector", sel))
			}
			break
		}
		if !outcome.Matched {
			f.logger.Warn("No element found for field.", zap.String("key", uf.Key))
		}
		report.Fields = append(report.Fields, outcome)
	}

	if matched == 0 {
		return report, schemas.ErrNoFieldsMatched
	}

	controls, err := d.QueryAll(ctx, submitSelector(""))
	if err == nil && len(controls) > 0 {
		err = d.Click(ctx, controls[0])
	}
	if err != nil {
		report.SubmitErr = err
		report.SubmitError = err.Error()
		f.logger.Warn("Could not submit form.", zap.Error(err))
	} else {
		report.Submitted = len(controls) > 0
	}
	return report, nil
}

// cssString escapes s for use inside a double-quoted CSS attribute value.
func cssString(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

