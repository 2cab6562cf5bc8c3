// File: internal/api/types.go
package api

import "github.com/xkilldash9x/alris-cli/api/schemas"

// Message types of the wire envelope.
const (
	TypeResponse = "response"
	TypeError    = "error"
)

// CommandRequest is the body of POST /command and of every websocket frame.
type CommandRequest struct {
	Command  string `json:"command"`
	ThreadID string `json:"thread_id,omitempty"`
}

// WireResponse is the envelope the chat client consumes.
type WireResponse struct {
	Type      string                   `json:"type"`
	Data      string                   `json:"data,omitempty"`
	Message   string                   `json:"message,omitempty"`
	VideoURLs []string                 `json:"video_urls,omitempty"`
	Intent    schemas.Intent           `json:"intent,omitempty"`
	ThreadID  string                   `json:"thread_id,omitempty"`
	Result    *schemas.ExecutionResult `json:"result,omitempty"`
}

// HistoryResponse is the body of GET /api/v1/history/{threadID}.
type HistoryResponse struct {
	ThreadID string                 `json:"thread_id"`
	Count    int                    `json:"count"`
	Entries  []schemas.HistoryEntry `json:"entries"`
}

// ToWire converts a pipeline envelope. Pipeline failures become error frames;
// results with status error or clarification_needed are still responses.
func ToWire(resp schemas.CommandResponse) WireResponse {
	if resp.Intent == schemas.IntentError {
		msg := resp.Result.Message
		if msg == "" {
			msg = resp.Error
		}
		return WireResponse{Type: TypeError, Message: msg, ThreadID: resp.ThreadID}
	}
	result := resp.Result
	return WireResponse{
		Type:      TypeResponse,
		Data:      result.Message,
		VideoURLs: resp.VideoURLs,
		Intent:    resp.Intent,
		ThreadID:  resp.ThreadID,
		Result:    &result,
	}
}

func errorWire(message string) WireResponse {
	return WireResponse{Type: TypeError, Message: message}
}
