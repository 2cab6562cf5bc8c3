package browser

import (
	stdjson "encoding/json"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"
)

// RefAttribute is stamped on every element QueryAll returns so a Handle can be
// resolved again with a plain attribute selector.
const RefAttribute = "data-alris-ref"

// Page-side helpers shared by the CDP backends. Each one is a function
// expression taking JSON arguments so it can be run through Invocation or a
// backend's native argument passing.
const (
	ScriptTagElements = `function(selector) {
	const out = [];
	document.querySelectorAll(selector).forEach((el) => {
		let ref = el.getAttribute('` + RefAttribute + `');
		if (!ref) {
			window.__alrisRefSeq = (window.__alrisRefSeq || 0) + 1;
			ref = String(window.__alrisRefSeq);
			el.setAttribute('` + RefAttribute + `', ref);
		}
		out.push('[` + RefAttribute + `="' + ref + '"]');
	});
	return out;
}`

	ScriptReadAttribute = `function(selector, name) {
	const el = document.querySelector(selector);
	if (!el) { throw new Error('element not found: ' + selector); }
	return { present: el.hasAttribute(name), value: el.getAttribute(name) || '' };
}`

	ScriptSetValue = `function(selector, value) {
	const el = document.querySelector(selector);
	if (!el) { throw new Error('element not found: ' + selector); }
	el.focus();
	el.value = value;
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
}`

	ScriptSetChecked = `function(selector, checked) {
	const el = document.querySelector(selector);
	if (!el) { throw new Error('element not found: ' + selector); }
	if (el.checked !== checked) {
		el.checked = checked;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
	}
	return el.checked;
}`

	ScriptSelectOption = `function(selector, value) {
	const el = document.querySelector(selector);
	if (!el) { throw new Error('element not found: ' + selector); }
	const wanted = String(value).toLowerCase();
	const match = Array.from(el.options || []).find((o) =>
		o.value === value || o.value.toLowerCase() === wanted || o.text.trim().toLowerCase() === wanted);
	if (!match) { throw new Error('no option matches ' + value); }
	el.value = match.value;
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return match.value;
}`
)

// AttributeResult is the decoded return value of ScriptReadAttribute.
type AttributeResult struct {
	Present bool   `json:"present"`
	Value   string `json:"value"`
}

// Invocation renders fn applied to args as a self-contained expression for
// backends that can only evaluate strings. The expression awaits promises and
// resolves to an envelope object, so null and undefined results survive
// by-value transport. Decode it with UnwrapInvocation.
func Invocation(fn string, args ...any) (string, error) {
	if args == nil {
		args = []any{}
	}
	encoded, err := json.ConfigCompatibleWithStandardLibrary.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode script arguments: %w", err)
	}
	var b strings.Builder
	b.WriteString("(async () => { const __r = await (")
	b.WriteString(strings.TrimSpace(fn))
	b.WriteString(").apply(null, ")
	b.Write(encoded)
	b.WriteString("); return { value: __r === undefined ? null : __r }; })()")
	return b.String(), nil
}

// UnwrapInvocation extracts the function result from an Invocation envelope.
func UnwrapInvocation(raw []byte) (stdjson.RawMessage, error) {
	var env struct {
		Value stdjson.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode script result: %w", err)
	}
	if len(env.Value) == 0 {
		return stdjson.RawMessage("null"), nil
	}
	return env.Value, nil
}

// DecodeHandles converts the ScriptTagElements result into handles.
func DecodeHandles(raw []byte) ([]Handle, error) {
	var refs []string
	if err := json.Unmarshal(raw, &refs); err != nil {
		return nil, fmt.Errorf("failed to decode element references: %w", err)
	}
	handles := make([]Handle, 0, len(refs))
	for _, r := range refs {
		handles = append(handles, Handle(r))
	}
	return handles, nil
}
