// Package formfill reconciles loosely keyed user values against the inputs
// discovered on a page and applies them through a browser.Driver.
package formfill

import (
	"github.com/xkilldash9x/alris-cli/internal/browser"
)

// FieldKind selects how a value is applied to a field.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindCheckbox FieldKind = "checkbox"
	KindRadio    FieldKind = "radio"
	KindSelect   FieldKind = "select"
)

// Confidence is the match quality between a user key and a discovered field.
type Confidence int

const (
	ConfidenceNone    Confidence = 0
	ConfidencePartial Confidence = 2 // One normalized string contains the other.
	ConfidenceExact   Confidence = 3 // Normalized strings are equal.
)

// DiscoveredField is the scraped metadata of one on-page input. Handle is a
// non-owning reference; it is only valid for the fill attempt it came from.
type DiscoveredField struct {
	Name        string         `json:"name,omitempty"`
	ElementID   string         `json:"id,omitempty"`
	Placeholder string         `json:"placeholder,omitempty"`
	AriaLabel   string         `json:"aria_label,omitempty"`
	Label       string         `json:"label,omitempty"`
	Tag         string         `json:"tag,omitempty"`
	Type        string         `json:"type,omitempty"`
	Handle      browser.Handle `json:"handle,omitempty"`
}

// Kind derives the application strategy from the tag and type.
func (f DiscoveredField) Kind() FieldKind {
	switch {
	case f.Tag == "select":
		return KindSelect
	case f.Tag == "input" && f.Type == "checkbox":
		return KindCheckbox
	case f.Tag == "input" && f.Type == "radio":
		return KindRadio
	default:
		return KindText
	}
}

// candidates returns the label strings in comparison order.
func (f DiscoveredField) candidates() [5]string {
	return [5]string{f.Name, f.ElementID, f.Placeholder, f.AriaLabel, f.Label}
}

// UserField is one user-supplied or extracted value. Value is a string, a
// bool, or a []string.
type UserField struct {
	Key   string
	Value any
}

// MatchResult pairs a user key with at most one discovered field.
type MatchResult struct {
	Key        string
	Value      any
	Field      *DiscoveredField
	Confidence Confidence
}

// Matched reports whether any field scored above zero.
func (m MatchResult) Matched() bool {
	return m.Field != nil && m.Confidence > ConfidenceNone
}
