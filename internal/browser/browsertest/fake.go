// Package browsertest provides an in-memory browser.Driver for tests.
package browsertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xkilldash9x/alris-cli/internal/browser"
)

// Call records one driver invocation.
type Call struct {
	Method string
	Handle browser.Handle
	Arg    any
}

// FakeDriver is a scriptable browser.Driver. Populate Elements and Attributes
// to shape the page, and use Fail to inject per-method errors.
type FakeDriver struct {
	mu sync.Mutex

	Elements      map[string][]browser.Handle
	Attributes    map[browser.Handle]map[string]string
	EvaluateFunc  func(fn string, args []any) (json.RawMessage, error)
	ScreenshotPNG []byte

	URL    string
	Calls  []Call
	Closed bool

	failures map[string]error
}

var _ browser.Driver = (*FakeDriver)(nil)

// New returns an empty page.
func New() *FakeDriver {
	return &FakeDriver{
		Elements:      make(map[string][]browser.Handle),
		Attributes:    make(map[browser.Handle]map[string]string),
		ScreenshotPNG: []byte("\x89PNG fake"),
		failures:      make(map[string]error),
	}
}

// Fail makes method return err. An empty handle applies to every handle.
func (f *FakeDriver) Fail(method string, h browser.Handle, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[failureKey(method, h)] = err
}

// CallsTo returns the recorded calls of one method, in order.
func (f *FakeDriver) CallsTo(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func failureKey(method string, h browser.Handle) string {
	return fmt.Sprintf("%s|%s", method, h)
}

// record logs the call and returns the injected failure, if any.
func (f *FakeDriver) record(method string, h browser.Handle, arg any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Method: method, Handle: h, Arg: arg})
	if err, ok := f.failures[failureKey(method, h)]; ok {
		return err
	}
	if err, ok := f.failures[failureKey(method, "")]; ok {
		return err
	}
	return nil
}

func (f *FakeDriver) Navigate(ctx context.Context, url string) error {
	if err := f.record("Navigate", "", url); err != nil {
		return err
	}
	f.mu.Lock()
	f.URL = url
	f.mu.Unlock()
	return nil
}

func (f *FakeDriver) QueryAll(ctx context.Context, selector string) ([]browser.Handle, error) {
	if err := f.record("QueryAll", "", selector); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]browser.Handle(nil), f.Elements[selector]...), nil
}

func (f *FakeDriver) ReadAttribute(ctx context.Context, h browser.Handle, name string) (string, bool, error) {
	if err := f.record("ReadAttribute", h, name); err != nil {
		return "", false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.Attributes[h][name]
	return v, ok, nil
}

func (f *FakeDriver) SetValue(ctx context.Context, h browser.Handle, value string) error {
	return f.record("SetValue", h, value)
}

func (f *FakeDriver) SetChecked(ctx context.Context, h browser.Handle, checked bool) error {
	return f.record("SetChecked", h, checked)
}

func (f *FakeDriver) SelectOption(ctx context.Context, h browser.Handle, value string) error {
	return f.record("SelectOption", h, value)
}

func (f *FakeDriver) Click(ctx context.Context, h browser.Handle) error {
	return f.record("Click", h, nil)
}

func (f *FakeDriver) Evaluate(ctx context.Context, fn string, args ...any) (json.RawMessage, error) {
	if err := f.record("Evaluate", "", fn); err != nil {
		return nil, err
	}
	if f.EvaluateFunc != nil {
		return f.EvaluateFunc(fn, args)
	}
	return json.RawMessage("null"), nil
}

func (f *FakeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	if err := f.record("Screenshot", "", nil); err != nil {
		return nil, err
	}
	return f.ScreenshotPNG, nil
}

func (f *FakeDriver) Close() error {
	if err := f.record("Close", "", nil); err != nil {
		return err
	}
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
