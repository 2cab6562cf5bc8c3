package formfill

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/api/schemas"
	"github.com/xkilldash9x/alris-cli/internal/browser"
)

const submitScript = `(sel) => {
  const form = document.querySelector(sel) || document.querySelector('form');
  if (!form) { throw new Error('no form on page'); }
  form.submit();
  return true;
}`

// FieldApplyError records a matched field whose value could not be set.
type FieldApplyError struct {
	Key    string
	Handle browser.Handle
	Kind   FieldKind
	Err    error
}

func (e *FieldApplyError) Error() string {
	return fmt.Sprintf("%s: key '%s' (%s %s): %v", schemas.ErrFieldApplyFailed, e.Key, e.Kind, e.Handle, e.Err)
}

// Unwrap exposes both the taxonomy sentinel and the driver error.
func (e *FieldApplyError) Unwrap() []error {
	return []error{schemas.ErrFieldApplyFailed, e.Err}
}

// FieldOutcome is what happened to one user field.
type FieldOutcome struct {
	Key        string     `json:"key"`
	Matched    bool       `json:"matched"`
	Confidence Confidence `json:"confidence"`
	Target     string     `json:"target,omitempty"`
	Err        error      `json:"-"`
	Error      string     `json:"error,omitempty"`
}

// FillReport is the per-key account of one fill attempt.
type FillReport struct {
	Fields      []FieldOutcome `json:"fields"`
	Submitted   bool           `json:"submitted"`
	SubmitErr   error          `json:"-"`
	SubmitError string         `json:"submit_error,omitempty"`
	Fallback    bool           `json:"fallback,omitempty"`
	Screenshot  []byte         `json:"-"`
}

// MatchedKeys lists keys that matched a field, including those whose apply failed.
func (r *FillReport) MatchedKeys() []string {
	return r.keys(func(o FieldOutcome) bool { return o.Matched })
}

// UnmatchedKeys lists keys that matched nothing.
func (r *FillReport) UnmatchedKeys() []string {
	return r.keys(func(o FieldOutcome) bool { return !o.Matched })
}

// FailedKeys lists matched keys whose value could not be applied.
func (r *FillReport) FailedKeys() []string {
	return r.keys(func(o FieldOutcome) bool { return o.Matched && o.Err != nil })
}

func (r *FillReport) keys(keep func(FieldOutcome) bool) []string {
	var out []string
	for _, o := range r.Fields {
		if keep(o) {
			out = append(out, o.Key)
		}
	}
	return out
}

// Summary renders the report as a sentence for the command response.
func (r *FillReport) Summary() string {
	var b strings.Builder
	matched := r.MatchedKeys()
	fmt.Fprintf(&b, "Filled %d field(s)", len(matched))
	if len(matched) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(matched, ", "))
	}
	b.WriteString(".")
	if unmatched := r.UnmatchedKeys(); len(unmatched) > 0 {
		fmt.Fprintf(&b, " Could not find a field for: %s.", strings.Join(unmatched, ", "))
	}
	if failed := r.FailedKeys(); len(failed) > 0 {
		fmt.Fprintf(&b, " Failed to set: %s.", strings.Join(failed, ", "))
	}
	if r.Submitted {
		b.WriteString(" The form was submitted.")
	} else if r.SubmitError != "" {
		fmt.Fprintf(&b, " The form could not be submitted: %s.", r.SubmitError)
	}
	return b.String()
}

// ToMap is the report as a tool output payload.
func (r *FillReport) ToMap() map[string]any {
	fields := make([]map[string]any, 0, len(r.Fields))
	for _, o := range r.Fields {
		entry := map[string]any{"key": o.Key, "matched": o.Matched, "confidence": int(o.Confidence)}
		if o.Error != "" {
			entry["error"] = o.Error
		}
		fields = append(fields, entry)
	}
	status := "success"
	if len(r.MatchedKeys()) == 0 {
		status = "error"
	}
	out := map[string]any{
		"status":    status,
		"message":   r.Summary(),
		"fields":    fields,
		"submitted": r.Submitted,
	}
	if r.SubmitError != "" {
		out["submit_error"] = r.SubmitError
	}
	return out
}

// Filler applies matched values through a driver and submits the form.
type Filler struct {
	logger *zap.Logger
}

// NewFiller creates a Filler.
func NewFiller(logger *zap.Logger) *Filler {
	return &Filler{logger: logger.Named("form_filler")}
}

// Fill matches userFields against discovered and applies every match. Apply
// failures are recorded per field and never abort the rest. With no match at
// all it returns ErrNoFieldsMatched and does not submit. A submit failure is
// only recorded in the report.
func (f *Filler) Fill(ctx context.Context, d browser.Driver, userFields []UserField, discovered []DiscoveredField) (*FillReport, error) {
	report := &FillReport{Fields: make([]FieldOutcome, 0, len(userFields))}
	matched := 0

	for _, m := range Match(userFields, discovered) {
		outcome := FieldOutcome{Key: m.Key, Confidence: m.Confidence}
		if !m.Matched() {
			f.logger.Warn("Could not match user field to any form input.", zap.String("key", m.Key))
			report.Fields = append(report.Fields, outcome)
			continue
		}

		matched++
		outcome.Matched = true
		outcome.Target = string(m.Field.Handle)
		if err := apply(ctx, d, *m.Field, m.Value); err != nil {
			applyErr := &FieldApplyError{Key: m.Key, Handle: m.Field.Handle, Kind: m.Field.Kind(), Err: err}
			outcome.Err = applyErr
			outcome.Error = applyErr.Error()
			f.logger.Warn("Failed to fill field.", zap.String("key", m.Key), zap.Error(err))
		}
		report.Fields = append(report.Fields, outcome)
	}

	if matched == 0 {
		f.logger.Error("No user fields matched any form inputs.", zap.Int("user_fields", len(userFields)), zap.Int("discovered", len(discovered)))
		return report, schemas.ErrNoFieldsMatched
	}

	f.submit(ctx, d, formSelector, report)
	return report, nil
}

// submit prefers a submit control inside scope and falls back to form.submit().
func (f *Filler) submit(ctx context.Context, d browser.Driver, scope string, report *FillReport) {
	selector := submitSelector(scope)
	controls, err := d.QueryAll(ctx, selector)
	if err != nil {
		f.logger.Debug("Submit control lookup failed, falling back to form.submit().", zap.Error(err))
	}

	if len(controls) > 0 {
		err = d.Click(ctx, controls[0])
	} else {
		_, err = d.Evaluate(ctx, submitScript, scope)
	}

	if err != nil {
		report.SubmitErr = err
		report.SubmitError = err.Error()
		f.logger.Warn("Could not submit form.", zap.Error(err))
		return
	}
	report.Submitted = true
}

func submitSelector(scope string) string {
	if scope == "" {
		return `button[type="submit"], input[type="submit"]`
	}
	return scope + ` button[type="submit"], ` + scope + ` input[type="submit"]`
}

func apply(ctx context.Context, d browser.Driver, field DiscoveredField, value any) error {
	switch field.Kind() {
	case KindCheckbox, KindRadio:
		return d.SetChecked(ctx, field.Handle, checkedValue(value))
	case KindSelect:
		return d.SelectOption(ctx, field.Handle, textValue(value))
	default:
		return d.SetValue(ctx, field.Handle, textValue(value))
	}
}

// textValue coerces a user value for text and select fields.
func textValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case []string:
		return strings.Join(val, ", ")
	case []any:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			parts = append(parts, textValue(p))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(val)
	}
}

// checkedValue coerces a user value for checkboxes and radios.
func checkedValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "", "false", "0", "no", "off":
			return false
		}
		return true
	case []string:
		return len(val) > 0
	case []any:
		return len(val) > 0
	case float64:
		return val != 0
	case int:
		return val != 0
	default:
		return true
	}
}
