// Package browser defines the capability set the form-fill and tool layers
// drive, and the pooled session that serializes access to a single driver.
package browser

import (
	"context"
	"encoding/json"
)

// Handle is an opaque, driver-scoped reference to one element. Both backends
// use a CSS selector that uniquely identifies the element on the current page.
// A Handle is only valid until the next navigation.
type Handle string

// Driver is the browser capability set. Implementations must treat an element
// lookup timeout as an ordinary error for that element.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// QueryAll returns a handle for every element matching selector, in
	// document order. No match is an empty slice, not an error.
	QueryAll(ctx context.Context, selector string) ([]Handle, error)
	// ReadAttribute reports the attribute value and whether it is present.
	ReadAttribute(ctx context.Context, h Handle, name string) (string, bool, error)
	SetValue(ctx context.Context, h Handle, value string) error
	SetChecked(ctx context.Context, h Handle, checked bool) error
	SelectOption(ctx context.Context, h Handle, value string) error
	Click(ctx context.Context, h Handle) error
	// Evaluate runs fn, a JavaScript function expression, with args marshaled
	// as JSON parameters, and returns its JSON-encoded result.
	Evaluate(ctx context.Context, fn string, args ...any) (json.RawMessage, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Factory creates the driver on first use of a Pool.
type Factory func(ctx context.Context) (Driver, error)
