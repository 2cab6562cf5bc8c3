// File: internal/mcp/tools.go
package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/alris-cli/api/schemas"
	"github.com/xkilldash9x/alris-cli/internal/formfill"
	"github.com/xkilldash9x/alris-cli/internal/video"
)

// CommandProcessor runs a natural language command end to end.
type CommandProcessor interface {
	ProcessCommand(ctx context.Context, command, threadID string) schemas.CommandResponse
}

// VideoSearcher runs a validated video search.
type VideoSearcher interface {
	Search(ctx context.Context, query string) schemas.ExecutionResult
}

// FormService fills and inspects forms at a URL.
type FormService interface {
	FillURL(ctx context.Context, rawURL string, data map[string]any) (*formfill.FillReport, error)
	DiscoverURL(ctx context.Context, rawURL string) ([]formfill.FieldSummary, error)
}

// DefaultTools returns the full tool set.
func DefaultTools(commands CommandProcessor, videos VideoSearcher, forms FormService) []Tool {
	return []Tool{
		&ProcessCommandTool{commands: commands},
		&SearchVideosTool{videos: videos},
		&FillFormTool{forms: forms},
		&DiscoverFormTool{forms: forms},
	}
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

func requireString(args map[string]any, key string) (string, error) {
	v := stringArg(args, key)
	if v == "" {
		return "", fmt.Errorf("'%s' is required", key)
	}
	return v, nil
}

// -- process_command --

type ProcessCommandTool struct {
	commands CommandProcessor
}

func (t *ProcessCommandTool) Name() string { return "process_command" }
func (t *ProcessCommandTool) Description() string {
	return "Run a natural language command through Alris: video search, form filling, calendar and email drafting, or general browsing. Pass thread_id to continue a conversation."
}
func (t *ProcessCommandTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command":   map[string]any{"type": "string", "description": "The user's request."},
			"thread_id": map[string]any{"type": "string", "description": "Conversation thread to continue."},
		},
		"required": []string{"command"},
	}
}

func (t *ProcessCommandTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	command, err := requireString(args, "command")
	if err != nil {
		return nil, err
	}
	resp := t.commands.ProcessCommand(ctx, command, stringArg(args, "thread_id"))
	if resp.Intent == schemas.IntentError {
		return nil, fmt.Errorf("%s", resp.Result.Message)
	}
	return resp, nil
}

// -- search_youtube --

type SearchVideosTool struct {
	videos VideoSearcher
}

func (t *SearchVideosTool) Name() string { return "search_youtube" }
func (t *SearchVideosTool) Description() string {
	return "Search YouTube and return validated watch URLs for the best matches."
}
func (t *SearchVideosTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"search_query": map[string]any{"type": "string", "description": "What to search for."},
		},
		"required": []string{"search_query"},
	}
}

func (t *SearchVideosTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	query, err := requireString(args, "search_query")
	if err != nil {
		return nil, err
	}
	res := t.videos.Search(ctx, query)
	if res.Status == schemas.StatusError {
		return nil, fmt.Errorf("%s", res.Message)
	}
	return video.ToolOutput(res, query), nil
}

// -- fill_form --

type FillFormTool struct {
	forms FormService
}

func (t *FillFormTool) Name() string { return "fill_form" }
func (t *FillFormTool) Description() string {
	return "Open a URL and fill its first form with the given field values. Keys are matched against field names, ids, labels and placeholders."
}
func (t *FillFormTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "description": "Page holding the form."},
			"form_data": map[string]any{
				"type":                 "object",
				"description":          "Field values keyed by a name such as 'email' or 'first name'.",
				"additionalProperties": true,
			},
		},
		"required": []string{"url", "form_data"},
	}
}

func (t *FillFormTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	url, err := requireString(args, "url")
	if err != nil {
		return nil, err
	}
	data, ok := args["form_data"].(map[string]any)
	if !ok || len(data) == 0 {
		return nil, fmt.Errorf("'form_data' must be a non-empty object")
	}
	report, err := t.forms.FillURL(ctx, url, data)
	if err != nil {
		if report != nil {
			return nil, fmt.Errorf("%w: %s", err, report.Summary())
		}
		return nil, err
	}
	return report.ToMap(), nil
}

// -- discover_form_fields --

type DiscoverFormTool struct {
	forms FormService
}

func (t *DiscoverFormTool) Name() string { return "discover_form_fields" }
func (t *DiscoverFormTool) Description() string {
	return "List the fields of the first form at a URL without filling anything."
}
func (t *DiscoverFormTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "description": "Page holding the form."},
		},
		"required": []string{"url"},
	}
}

func (t *DiscoverFormTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	url, err := requireString(args, "url")
	if err != nil {
		return nil, err
	}
	fields, err := t.forms.DiscoverURL(ctx, url)
	if err != nil {
		return nil, err
	}
	return map[string]any{"url": url, "count": len(fields), "fields": fields}, nil
}
