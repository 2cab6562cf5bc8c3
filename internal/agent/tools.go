package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/alris-cli/internal/browser"
	"github.com/xkilldash9x/alris-cli/internal/formfill"
	"github.com/xkilldash9x/alris-cli/internal/llmutil"
	"github.com/xkilldash9x/alris-cli/internal/video"
)

// Tool names understood by the execution loop.
const (
	ToolNavigate     = "navigate_to_url"
	ToolSearchVideos = "search_youtube"
	ToolFillForm     = "fill_form"
	ToolClick        = "click_element"
	ToolDiscoverForm = "discover_form_fields"
)

var (
	errEmptyInput      = errors.New("input is required")
	errMissingFormData = errors.New("form_data is required")
)

// Sessions hands out exclusive use of the shared driver.
type Sessions interface {
	With(ctx context.Context, fn func(browser.Driver) error) error
}

// DefaultTools builds the standard tool set over the shared collaborators.
func DefaultTools(sessions Sessions, videos *video.Service, forms *formfill.Service) *Registry {
	return NewRegistry(
		NavigateTool(sessions),
		SearchVideosTool(videos),
		FillFormTool(sessions, forms),
		ClickTool(sessions),
		DiscoverFormTool(forms),
	)
}

// NavigateTool opens a URL in the shared browser.
func NavigateTool(sessions Sessions) Tool {
	return NewTool(ToolNavigate,
		"Open a web page. Input: the URL to open.",
		func(ctx context.Context, input string) (any, error) {
			target := formfill.NormalizeURL(unquote(input))
			if target == "" {
				return nil, errEmptyInput
			}
			err := sessions.With(ctx, func(d browser.Driver) error {
				return d.Navigate(ctx, target)
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"status":  "success",
				"message": fmt.Sprintf("Navigated to %s", target),
				"url":     target,
			}, nil
		})
}

// SearchVideosTool searches YouTube. The output always carries video_urls.
func SearchVideosTool(videos *video.Service) Tool {
	return NewTool(ToolSearchVideos,
		"Search YouTube for videos. Input: the search query.",
		func(ctx context.Context, input string) (any, error) {
			query := unquote(input)
			return video.ToolOutput(videos.Search(ctx, query), query), nil
		})
}

type fillFormInput struct {
	FormData  map[string]any    `json:"form_data"`
	Selectors map[string]string `json:"selectors"`
	URL       string            `json:"url"`
}

// FillFormTool fills the form on the current page, or on url when given.
func FillFormTool(sessions Sessions, forms *formfill.Service) Tool {
	return NewTool(ToolFillForm,
		`Fill and submit a web form. Input: JSON {"form_data": {"field": "value"}, "selectors": {"field": "css selector"} (optional), "url": "page to open first" (optional)}.`,
		func(ctx context.Context, input string) (any, error) {
			in, err := llmutil.ParseJSONResponse[fillFormInput](input)
			if err != nil {
				return nil, err
			}
			if len(in.FormData) == 0 {
				return nil, errMissingFormData
			}

			var report *formfill.FillReport
			if in.URL != "" && len(in.Selectors) == 0 {
				report, err = forms.FillURL(ctx, in.URL, in.FormData)
			} else {
				err = sessions.With(ctx, func(d browser.Driver) error {
					if in.URL != "" {
						if navErr := d.Navigate(ctx, formfill.NormalizeURL(in.URL)); navErr != nil {
							return navErr
						}
					}
					var fillErr error
					report, fillErr = forms.FillCurrent(ctx, d, formfill.FieldsFromMap(in.FormData), in.Selectors)
					return fillErr
				})
			}
			if err != nil {
				return nil, err
			}
			return report.ToMap(), nil
		})
}

// ClickTool clicks the first element matching a CSS selector.
func ClickTool(sessions Sessions) Tool {
	return NewTool(ToolClick,
		"Click an element on the current page. Input: a CSS selector.",
		func(ctx context.Context, input string) (any, error) {
			selector := unquote(input)
			if selector == "" {
				return nil, errEmptyInput
			}
			err := sessions.With(ctx, func(d browser.Driver) error {
				handles, err := d.QueryAll(ctx, selector)
				if err != nil {
					return err
				}
				if len(handles) == 0 {
					return fmt.Errorf("no element matches selector '%s'", selector)
				}
				return d.Click(ctx, handles[0])
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"status":  "success",
				"message": fmt.Sprintf("Clicked element with selector '%s'", selector),
			}, nil
		})
}

// DiscoverFormTool describes the fields of the first form on a page.
func DiscoverFormTool(forms *formfill.Service) Tool {
	return NewTool(ToolDiscoverForm,
		"List the fields of the form on a web page. Input: the URL of the page.",
		func(ctx context.Context, input string) (any, error) {
			target := unquote(input)
			summaries, err := forms.DiscoverURL(ctx, target)
			if err != nil {
				return nil, err
			}
			fields := make([]map[string]any, 0, len(summaries))
			for _, s := range summaries {
				fields = append(fields, map[string]any{"field_name": s.FieldName, "label": s.Label})
			}
			return map[string]any{
				"status": "success",
				"url":    formfill.NormalizeURL(target),
				"fields": fields,
			}, nil
		})
}

// unquote trims whitespace and one layer of quotes that models like to add.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
