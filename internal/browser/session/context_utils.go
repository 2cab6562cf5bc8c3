// internal/browser/session/context_utils.go
package session

import (
	"context"
	"strings"
)

// CombineContext derives from ctx1, which carries the CDP target, and is also
// canceled when ctx2 is. Values come from ctx1 only.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)
	stop := context.AfterFunc(ctx2, cancel)
	return combinedCtx, func() {
		stop()
		cancel()
	}
}

// cutFlag splits a command line switch such as "--lang=en-US" into its name
// and value.
func cutFlag(raw string) (name, value string, hasValue bool) {
	trimmed := strings.TrimLeft(strings.TrimSpace(raw), "-")
	return strings.Cut(trimmed, "=")
}
