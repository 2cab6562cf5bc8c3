package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/api/schemas"
	"github.com/xkilldash9x/alris-cli/internal/browser"
	"github.com/xkilldash9x/alris-cli/internal/browser/browsertest"
	"github.com/xkilldash9x/alris-cli/internal/formfill"
	"github.com/xkilldash9x/alris-cli/internal/video"
)

const contactForm = `{"found": true, "fields": [
  {"name": "name", "label": "Your name", "tag": "input", "type": "text", "handle": "[data-alris-field=\"0\"]"},
  {"name": "email", "label": "Email", "tag": "input", "type": "email", "handle": "[data-alris-field=\"1\"]"}
]}`

// formPage answers the form discovery script with scraped and every other
// script with true.
func formPage(scraped string) *browsertest.FakeDriver {
	d := browsertest.New()
	d.EvaluateFunc = func(fn string, args []any) (json.RawMessage, error) {
		if len(args) == 2 && args[0] == "data-alris-field" {
			return json.RawMessage(scraped), nil
		}
		return json.RawMessage("true"), nil
	}
	return d
}

func newPool(t *testing.T, d browser.Driver) *browser.Pool {
	t.Helper()
	pool := browser.NewPool(func(context.Context) (browser.Driver, error) { return d, nil }, zap.NewNop())
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

type stubSearcher struct {
	urls []string
	err  error
}

func (s stubSearcher) Search(ctx context.Context, query string, limit int) ([]string, error) {
	return s.urls, s.err
}

func TestDefaultTools_Names(t *testing.T) {
	d := browsertest.New()
	pool := newPool(t, d)
	reg := DefaultTools(pool, video.NewService(stubSearcher{}, 0, zap.NewNop()), formfill.NewService(pool, t.TempDir(), zap.NewNop()))

	var names []string
	for _, tool := range reg.Tools() {
		names = append(names, tool.Name())
		assert.NotEmpty(t, tool.Description())
	}
	assert.Equal(t, []string{ToolNavigate, ToolSearchVideos, ToolFillForm, ToolClick, ToolDiscoverForm}, names)
}

func TestNavigateTool(t *testing.T) {
	d := browsertest.New()
	tool := NavigateTool(newPool(t, d))

	out, err := tool.Call(context.Background(), `"www.example.com"`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"status":  "success",
		"message": "Navigated to https://www.example.com",
		"url":     "https://www.example.com",
	}, out)
	assert.Equal(t, "https://www.example.com", d.URL)

	_, err = tool.Call(context.Background(), "   ")
	assert.ErrorIs(t, err, errEmptyInput)
}

func TestNavigateTool_DriverError(t *testing.T) {
	d := browsertest.New()
	d.Fail("Navigate", "", errors.New("net::ERR_NAME_NOT_RESOLVED"))
	tool := NavigateTool(newPool(t, d))

	_, err := tool.Call(context.Background(), "https://nowhere.invalid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_NAME_NOT_RESOLVED")
}

func TestClickTool(t *testing.T) {
	d := browsertest.New()
	d.Elements["button.submit"] = []browser.Handle{"h1", "h2"}
	tool := ClickTool(newPool(t, d))

	t.Run("clicks the first match", func(t *testing.T) {
		out, err := tool.Call(context.Background(), "button.submit")
		require.NoError(t, err)
		assert.Equal(t, "Clicked element with selector 'button.submit'", out.(map[string]any)["message"])
		clicks := d.CallsTo("Click")
		require.Len(t, clicks, 1)
		assert.Equal(t, browser.Handle("h1"), clicks[0].Handle)
	})

	t.Run("no match", func(t *testing.T) {
		_, err := tool.Call(context.Background(), "#missing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no element matches selector '#missing'")
	})

	t.Run("empty selector", func(t *testing.T) {
		_, err := tool.Call(context.Background(), `""`)
		assert.ErrorIs(t, err, errEmptyInput)
	})
}

func TestSearchVideosTool(t *testing.T) {
	t.Run("success carries urls", func(t *testing.T) {
		svc := video.NewService(stubSearcher{urls: []string{"https://www.youtube.com/watch?v=aaaaaaaaaaa"}}, 0, zap.NewNop())
		out, err := SearchVideosTool(svc).Call(context.Background(), `"lofi beats"`)
		require.NoError(t, err)
		payload := out.(map[string]any)
		assert.Equal(t, "success", payload["status"])
		assert.Equal(t, "lofi beats", payload["query"])
		assert.Equal(t, []string{video.CanonicalPrefix + "aaaaaaaaaaa"}, payload["video_urls"])
	})

	t.Run("search failure is still an observation", func(t *testing.T) {
		svc := video.NewService(stubSearcher{err: errors.New("429")}, 0, zap.NewNop())
		out, err := SearchVideosTool(svc).Call(context.Background(), "lofi beats")
		require.NoError(t, err)
		payload := out.(map[string]any)
		assert.Equal(t, "error", payload["status"])
		assert.Equal(t, []string{}, payload["video_urls"])
	})
}

func TestFillFormTool(t *testing.T) {
	t.Run("fills the page at url", func(t *testing.T) {
		d := formPage(contactForm)
		pool := newPool(t, d)
		tool := FillFormTool(pool, formfill.NewService(pool, t.TempDir(), zap.NewNop()))

		out, err := tool.Call(context.Background(), `{"url": "www.example.com/contact", "form_data": {"name": "Ada", "email": "ada@example.com"}}`)
		require.NoError(t, err)
		payload := out.(map[string]any)
		assert.Equal(t, "success", payload["status"])
		assert.Equal(t, "https://www.example.com/contact", d.URL)
		assert.Len(t, d.CallsTo("SetValue"), 2)
	})

	t.Run("fills the current page", func(t *testing.T) {
		d := formPage(contactForm)
		pool := newPool(t, d)
		tool := FillFormTool(pool, formfill.NewService(pool, t.TempDir(), zap.NewNop()))

		_, err := tool.Call(context.Background(), `{"form_data": {"email": "ada@example.com"}}`)
		require.NoError(t, err)
		assert.Empty(t, d.CallsTo("Navigate"))
		sets := d.CallsTo("SetValue")
		require.Len(t, sets, 1)
		assert.Equal(t, "ada@example.com", sets[0].Arg)
	})

	t.Run("bad input", func(t *testing.T) {
		pool := newPool(t, browsertest.New())
		tool := FillFormTool(pool, formfill.NewService(pool, t.TempDir(), zap.NewNop()))

		_, err := tool.Call(context.Background(), `{"url": "example.com"}`)
		assert.ErrorIs(t, err, errMissingFormData)

		_, err = tool.Call(context.Background(), `not json at all`)
		assert.Error(t, err)
	})
}

func TestDiscoverFormTool(t *testing.T) {
	d := formPage(contactForm)
	pool := newPool(t, d)
	tool := DiscoverFormTool(formfill.NewService(pool, t.TempDir(), zap.NewNop()))

	out, err := tool.Call(context.Background(), "https://example.com/contact")
	require.NoError(t, err)
	payload := out.(map[string]any)
	assert.Equal(t, "https://example.com/contact", payload["url"])
	assert.Equal(t, []map[string]any{
		{"field_name": "name", "label": "Your name"},
		{"field_name": "email", "label": "Email"},
	}, payload["fields"])
}

func TestRegistry(t *testing.T) {
	first := NewTool("a", "first", nil)
	reg := NewRegistry(first, NewTool("b", "second", nil))
	reg.Register(NewTool("a", "replaced", nil))

	tools := reg.Tools()
	require.Len(t, tools, 2)
	assert.Equal(t, "replaced", tools[0].Description(), "re-registering keeps the original position")
	assert.Equal(t, "    - a: replaced\n    - b: second\n", reg.Catalogue())

	_, ok := reg.Get("missing")
	assert.False(t, ok)
}

func TestToolError(t *testing.T) {
	cause := errors.New("timeout")
	err := error(&ToolError{Tool: "click_element", Err: cause})
	assert.ErrorIs(t, err, schemas.ErrToolInvocationFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, schemas.ErrKindToolInvocationFailed, schemas.KindOf(err))
}

func TestUnquote(t *testing.T) {
	testCases := map[string]string{
		`"https://a.b"`: "https://a.b",
		`'#submit'`:     "#submit",
		`  plain  `:     "plain",
		`"mismatch'`:    `"mismatch'`,
		`"`:             `"`,
	}
	for in, expected := range testCases {
		assert.Equal(t, expected, unquote(in), in)
	}
}
