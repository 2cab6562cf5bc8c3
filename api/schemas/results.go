package schemas

import "time"

// Intent is the classified action category for a command.
type Intent string

const (
	IntentBrowser     Intent = "browser"
	IntentFormFill    Intent = "form_fill"
	IntentCalendar    Intent = "calendar"
	IntentEmail       Intent = "email"
	IntentVideoSearch Intent = "youtube_search"
	IntentVideoDirect Intent = "youtube_direct"
	IntentGeneral     Intent = "general"
	IntentError       Intent = "error" // Envelope-only. Never produced by classification.
)

// Status is the terminal state of an ExecutionResult.
type Status string

const (
	StatusSuccess             Status = "success"
	StatusError               Status = "error"
	StatusClarificationNeeded Status = "clarification_needed"
)

// ActionType names the command-to-action mapping families.
type ActionType string

const (
	ActionBrowser  ActionType = "browser"
	ActionCalendar ActionType = "calendar"
	ActionEmail    ActionType = "email"
)

// ActionResponse is the structured command-to-action mapping.
type ActionResponse struct {
	ActionType ActionType     `json:"action_type"`
	Parameters map[string]any `json:"parameters"`
}

// ToolOutput records one tool-role message of the execution loop.
type ToolOutput struct {
	ToolName   string `json:"tool_name"`
	ToolOutput any    `json:"tool_output"`
}

// ExecutionResult is the final structured output of a request. It is built
// once and never mutated after it is returned.
type ExecutionResult struct {
	Status      Status          `json:"status"`
	Message     string          `json:"message"`
	VideoURLs   []string        `json:"video_urls,omitempty"`
	ToolOutputs []ToolOutput    `json:"tool_outputs,omitempty"`
	ErrorKind   ErrorKind       `json:"error_kind,omitempty"`
	Fields      map[string]any  `json:"fields,omitempty"`     // Partial extraction on clarification.
	Action      *ActionResponse `json:"action,omitempty"`     // Prepared calendar/email/browser action.
	Screenshot  string          `json:"screenshot,omitempty"` // Base64 PNG captured after a form fill.
}

// ErrorResult builds a status:error result tagged with the taxonomy kind of err.
func ErrorResult(message string, err error) ExecutionResult {
	return ExecutionResult{
		Status:    StatusError,
		Message:   message,
		ErrorKind: KindOf(err),
	}
}

// ClarificationResult builds a clarification_needed result carrying the
// partial extraction so the caller can re-prompt.
func ClarificationResult(message string, fields map[string]any) ExecutionResult {
	return ExecutionResult{
		Status:  StatusClarificationNeeded,
		Message: message,
		Fields:  fields,
	}
}

// CommandResponse is the envelope returned for every processed command.
type CommandResponse struct {
	ThreadID  string          `json:"thread_id"`
	Intent    Intent          `json:"intent"`
	Command   string          `json:"command"`
	Result    ExecutionResult `json:"result"`
	VideoURLs []string        `json:"video_urls,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// HistoryEntry is one persisted command of a conversation thread.
type HistoryEntry struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Command   string    `json:"command"`
	Intent    Intent    `json:"intent"`
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	VideoURLs []string  `json:"video_urls,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
