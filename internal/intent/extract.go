package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/api/schemas"
	"github.com/xkilldash9x/alris-cli/internal/llmutil"
	"github.com/xkilldash9x/alris-cli/internal/normalize"
)

// ErrExtractionUnparseable is returned when an extraction reply is not the
// expected JSON object. Callers turn it into a clarification.
var ErrExtractionUnparseable = errors.New("extraction response could not be parsed")

// DefaultEventDuration is used when an event has a start but no end.
const DefaultEventDuration = time.Hour

// sortedJSON marshals maps with sorted keys so prompts are stable.
var sortedJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Clarification asks the user for missing input. Fields carries the partial
// extraction so the caller can re-prompt.
type Clarification struct {
	Message string
	Fields  map[string]any
}

// Result renders the clarification as a command result.
func (c *Clarification) Result() schemas.ExecutionResult {
	return schemas.ClarificationResult(c.Message, c.Fields)
}

// FormExtraction is the canonical form-fill contract.
type FormExtraction struct {
	URL                string         `json:"url"`
	FormData           map[string]any `json:"form_data"`
	NeedsClarification string         `json:"needs_clarification,omitempty"`
}

// Fields is the extraction as a plain map.
func (f *FormExtraction) Fields() map[string]any {
	out := map[string]any{"url": f.URL, "form_data": f.FormData}
	if f.NeedsClarification != "" {
		out["needs_clarification"] = f.NeedsClarification
	}
	return out
}

// EventExtraction holds calendar event details. Start and End are zero when
// unknown.
type EventExtraction struct {
	Title              string
	Start              time.Time
	End                time.Time
	Description        string
	NeedsClarification string
}

// Parameters is the calendar action payload.
func (e *EventExtraction) Parameters() map[string]any {
	params := map[string]any{"title": e.Title, "description": e.Description}
	if !e.Start.IsZero() {
		params["start_time"] = e.Start.Format(time.RFC3339)
	}
	if !e.End.IsZero() {
		params["end_time"] = e.End.Format(time.RFC3339)
	}
	return params
}

// Clarification returns nil when the event can be scheduled.
func (e *EventExtraction) Clarification() *Clarification {
	if e.NeedsClarification == "" {
		return nil
	}
	return &Clarification{Message: e.NeedsClarification, Fields: e.Parameters()}
}

// EmailExtraction holds email details.
type EmailExtraction struct {
	To                 stringList `json:"to"`
	Cc                 stringList `json:"cc"`
	Bcc                stringList `json:"bcc"`
	Subject            string     `json:"subject"`
	Body               string     `json:"body"`
	NeedsClarification string     `json:"needs_clarification,omitempty"`
}

// Parameters is the email action payload.
func (e *EmailExtraction) Parameters() map[string]any {
	return map[string]any{
		"to":      []string(e.To),
		"cc":      []string(e.Cc),
		"bcc":     []string(e.Bcc),
		"subject": e.Subject,
		"body":    e.Body,
	}
}

// Clarification returns nil when the email can be prepared.
func (e *EmailExtraction) Clarification() *Clarification {
	switch {
	case len(e.To) == 0:
		return &Clarification{
			Message: "Who should I send this email to? Please provide a recipient email address.",
			Fields:  e.Parameters(),
		}
	case e.NeedsClarification != "":
		return &Clarification{Message: e.NeedsClarification, Fields: e.Parameters()}
	}
	return nil
}

// stringList accepts a JSON list of strings, a single string, or null.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var many []string
	if err := jsoniter.Unmarshal(data, &many); err == nil {
		*l = compact(many)
		return nil
	}
	var one *string
	if err := jsoniter.Unmarshal(data, &one); err != nil {
		return fmt.Errorf("expected a string or a list of strings: %w", err)
	}
	if one == nil {
		*l = nil
		return nil
	}
	*l = compact(strings.Split(*one, ","))
	return nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Extractor pulls structured parameters out of commands with the model.
type Extractor struct {
	completer       schemas.Completer
	defaults        map[string]any
	defaultDuration time.Duration
	logger          *zap.Logger
}

// NewExtractor creates an Extractor. defaults fill form keys the user did not
// give; a non-positive duration means DefaultEventDuration.
func NewExtractor(completer schemas.Completer, defaults map[string]any, defaultDuration time.Duration, logger *zap.Logger) *Extractor {
	if defaultDuration <= 0 {
		defaultDuration = DefaultEventDuration
	}
	if defaults == nil {
		defaults = map[string]any{}
	}
	return &Extractor{
		completer:       completer,
		defaults:        defaults,
		defaultDuration: defaultDuration,
		logger:          logger.Named("extractor"),
	}
}

// ExtractForm extracts the form URL and values from command. Configured
// defaults are merged in for keys the model did not return, and a URL missing
// from the reply is recovered from the command text.
func (e *Extractor) ExtractForm(ctx context.Context, command string) (*FormExtraction, error) {
	defaults, err := sortedJSON.MarshalToString(e.defaults)
	if err != nil {
		return nil, fmt.Errorf("failed to encode form defaults: %w", err)
	}

	ext, err := complete[FormExtraction](ctx, e, "form extraction", render(formExtractionPrompt, "defaults", defaults, "command", command))
	if err != nil {
		return nil, err
	}

	if ext.FormData == nil {
		ext.FormData = make(map[string]any)
	}
	ext.URL = strings.TrimSpace(ext.URL)
	if ext.URL == "" {
		ext.URL = ExtractURL(command)
	}
	mergeDefaults(ext.FormData, e.defaults)
	e.logger.Debug("Extracted form fields.", zap.String("url", ext.URL), zap.Int("fields", len(ext.FormData)))
	return ext, nil
}

// mergeDefaults adds each default whose key is not already present under any
// spelling.
func mergeDefaults(data, defaults map[string]any) {
	present := make(map[string]struct{}, len(data))
	for k := range data {
		present[normalize.Key(k)] = struct{}{}
	}
	for k, v := range defaults {
		if _, ok := present[normalize.Key(k)]; !ok {
			data[k] = v
		}
	}
}

type eventReply struct {
	Title              string  `json:"title"`
	StartTime          *string `json:"start_time"`
	EndTime            *string `json:"end_time"`
	Description        *string `json:"description"`
	NeedsClarification string  `json:"needs_clarification"`
}

// timeLayouts are the accepted forms of model-produced timestamps.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ExtractEvent extracts calendar details relative to now. An end time is
// derived from the start when missing.
func (e *Extractor) ExtractEvent(ctx context.Context, command string, now time.Time) (*EventExtraction, error) {
	prompt := render(eventExtractionPrompt, "current_date", now.Format("2006-01-02"), "command", command)
	reply, err := complete[eventReply](ctx, e, "event extraction", prompt)
	if err != nil {
		return nil, err
	}

	ev := &EventExtraction{Title: strings.TrimSpace(reply.Title), NeedsClarification: reply.NeedsClarification}
	if reply.Description != nil {
		ev.Description = *reply.Description
	}

	if reply.StartTime == nil || strings.TrimSpace(*reply.StartTime) == "" {
		if ev.NeedsClarification == "" {
			ev.NeedsClarification = "No time specified. Please provide a date and time for the event."
		}
		return ev, nil
	}
	start, ok := parseTime(*reply.StartTime, now.Location())
	if !ok {
		ev.NeedsClarification = fmt.Sprintf("I couldn't understand the time '%s'. Please provide a date and time like 2025-05-31 10:00.", *reply.StartTime)
		return ev, nil
	}
	ev.Start = start
	ev.End = start.Add(e.defaultDuration)

	if reply.EndTime != nil && strings.TrimSpace(*reply.EndTime) != "" {
		end, ok := parseTime(*reply.EndTime, now.Location())
		if !ok || !end.After(start) {
			e.logger.Warn("Ignoring unusable event end time.", zap.String("end_time", *reply.EndTime))
		} else {
			ev.End = end
		}
	}
	return ev, nil
}

func parseTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ExtractEmail extracts recipients, subject and body from command.
func (e *Extractor) ExtractEmail(ctx context.Context, command string) (*EmailExtraction, error) {
	return complete[EmailExtraction](ctx, e, "email extraction", render(emailExtractionPrompt, "command", command))
}

// complete runs one extraction prompt and parses the reply into T.
func complete[T any](ctx context.Context, e *Extractor, op, prompt string) (*T, error) {
	resp, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, collaboratorError(op, err)
	}
	parsed, err := llmutil.ParseJSONResponse[T](resp)
	if err != nil {
		e.logger.Warn("Extraction reply was not JSON.", zap.String("op", op), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrExtractionUnparseable, op, err)
	}
	return parsed, nil
}
