package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xkilldash9x/alris-cli/api/schemas"
)

// Tool is one capability offered to the model inside the execution loop.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, input string) (any, error)
}

// ToolFunc is the body of a tool built with NewTool.
type ToolFunc func(ctx context.Context, input string) (any, error)

type funcTool struct {
	name        string
	description string
	fn          ToolFunc
}

func (t *funcTool) Name() string        { return t.name }
func (t *funcTool) Description() string { return t.description }
func (t *funcTool) Call(ctx context.Context, input string) (any, error) {
	return t.fn(ctx, input)
}

// NewTool wraps fn as a Tool.
func NewTool(name, description string, fn ToolFunc) Tool {
	return &funcTool{name: name, description: description, fn: fn}
}

// ToolError records a failed or unknown tool call.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s: %v", schemas.ErrToolInvocationFailed, e.Tool, e.Err)
}

func (e *ToolError) Unwrap() []error {
	return []error{schemas.ErrToolInvocationFailed, e.Err}
}

// Registry holds tools by name in registration order.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]Tool
}

// NewRegistry creates a registry holding tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds t. A tool with the same name is replaced in place.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns every tool in registration order.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Catalogue lists the tools for the system prompt.
func (r *Registry) Catalogue() string {
	var b strings.Builder
	for _, t := range r.Tools() {
		fmt.Fprintf(&b, "    - %s: %s\n", t.Name(), t.Description())
	}
	return b.String()
}
