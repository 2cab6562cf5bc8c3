package conversation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/api/schemas"
)

// VideoSearchTool is the tool whose video_urls take precedence.
const VideoSearchTool = "search_youtube"

const videoURLsKey = "video_urls"

var (
	mediaKeywords = []string{"youtube", "watch", "video", "tutorial"}
	queryTriggers = []string{"video", "tutorial", "watch"}
)

// VideoLookup answers the fallback search for media requests that produced
// no videos.
type VideoLookup interface {
	Lookup(ctx context.Context, query string) ([]string, error)
}

// Reducer derives one ExecutionResult from a message sequence.
type Reducer struct {
	lookup VideoLookup
	logger *zap.Logger
}

// NewReducer creates a Reducer. lookup may be nil, which disables the
// fallback search.
func NewReducer(lookup VideoLookup, logger *zap.Logger) *Reducer {
	return &Reducer{lookup: lookup, logger: logger.Named("reducer")}
}

// MediaQuery reports whether command asks for media and derives the fallback
// search query. The query is the text after the first trigger word found,
// which decides even when nothing follows it; failing that, the command with
// "youtube" removed; failing that, the command itself.
func MediaQuery(command string) (string, bool) {
	lower := strings.ToLower(command)
	media := false
	for _, kw := range mediaKeywords {
		if strings.Contains(lower, kw) {
			media = true
			break
		}
	}
	if !media {
		return "", false
	}

	var query string
	for _, trigger := range queryTriggers {
		if i := strings.Index(lower, trigger); i >= 0 {
			query = strings.TrimSpace(lower[i+len(trigger):])
			break
		}
	}
	if query == "" && strings.Contains(lower, "youtube") {
		query = strings.TrimSpace(strings.ReplaceAll(lower, "youtube", ""))
	}
	if query == "" {
		query = command
	}
	return query, true
}

// Reduce walks msgs in order and builds the result. Pending content is
// awaited; a failed resolution becomes an error string in place of the
// content. Reduce never panics and never returns an error: any failure
// becomes a status:error result.
func (r *Reducer) Reduce(ctx context.Context, command string, msgs []Message) (result schemas.ExecutionResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Recovered from panic while reducing messages.", zap.Any("panic", rec), zap.Stack("stack"))
			result = schemas.ExecutionResult{
				Status:    schemas.StatusError,
				Message:   fmt.Sprintf("Failed to process the execution results: %v", rec),
				ErrorKind: schemas.ErrKindInternal,
			}
		}
	}()

	// 1. Resolve content and track the latest video collection.
	resolved := make([]Message, len(msgs))
	var videoURLs []string
	for i, m := range msgs {
		m.Content = r.resolve(i, m.Content)
		resolved[i] = m
		if urls, ok := videoURLsOf(m.Content); ok {
			videoURLs = urls
		}
	}

	// 2. The search tool's own collection wins.
	for _, m := range resolved {
		if m.Name != VideoSearchTool {
			continue
		}
		if urls, ok := videoURLsOf(m.Content); ok {
			videoURLs = urls
		}
	}

	// 3. One fallback lookup for media requests that found nothing.
	if query, media := MediaQuery(command); media && len(videoURLs) == 0 && r.lookup != nil {
		r.logger.Info("No videos in tool output, running fallback search.", zap.String("query", query))
		urls, err := r.lookup.Lookup(ctx, query)
		if err != nil {
			r.logger.Warn("Fallback video search failed.", zap.Error(err))
		} else {
			videoURLs = urls
		}
	}

	// 4. The final message, replaced by a listing if it omits any video.
	message := finalMessage(resolved)
	if len(videoURLs) > 0 && !containsAll(message, videoURLs) {
		message = videoListing(videoURLs)
	}

	// 5. Tool outputs in order.
	var outputs []schemas.ToolOutput
	for _, m := range resolved {
		if m.Role != RoleTool {
			continue
		}
		name := m.Name
		if name == "" {
			name = m.ToolCallID
		}
		outputs = append(outputs, schemas.ToolOutput{ToolName: name, ToolOutput: outputValue(m.Content)})
	}

	result = schemas.ExecutionResult{
		Status:      schemas.StatusSuccess,
		Message:     message,
		ToolOutputs: outputs,
	}
	if len(videoURLs) > 0 {
		result.VideoURLs = videoURLs
	}
	return result
}

// resolve awaits pending content.
func (r *Reducer) resolve(index int, c Content) Content {
	p, ok := c.(*Pending)
	if !ok {
		return c
	}
	v, err := p.Await()
	if err != nil {
		r.logger.Error("Error resolving message content.", zap.Int("message", index), zap.Error(err))
		return Text(fmt.Sprintf("Error resolving content: %v", err))
	}
	if v == nil {
		return Text("")
	}
	return v
}

// videoURLsOf reports the video collection carried by c, if it has one.
func videoURLsOf(c Content) ([]string, bool) {
	s, ok := c.(Structured)
	if !ok {
		return nil, false
	}
	raw, ok := s[videoURLsKey]
	if !ok {
		return nil, false
	}
	switch list := raw.(type) {
	case []string:
		return append([]string(nil), list...), true
	case []any:
		urls := make([]string, 0, len(list))
		for _, v := range list {
			if u, ok := v.(string); ok && u != "" {
				urls = append(urls, u)
			}
		}
		return urls, true
	default:
		return nil, true
	}
}

// finalMessage is the last assistant message with content, else the last
// message of any role.
func finalMessage(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleAssistant {
			if text := render(msgs[i].Content); text != "" {
				return text
			}
		}
	}
	if len(msgs) == 0 {
		return ""
	}
	return render(msgs[len(msgs)-1].Content)
}

// render prefers the "message" field of structured payloads.
func render(c Content) string {
	if s, ok := c.(Structured); ok {
		if len(s) == 0 {
			return ""
		}
		if msg, ok := s["message"].(string); ok {
			return msg
		}
	}
	return String(c)
}

func containsAll(message string, urls []string) bool {
	for _, u := range urls {
		if !strings.Contains(message, u) {
			return false
		}
	}
	return true
}

func videoListing(urls []string) string {
	var b strings.Builder
	b.WriteString("Here are some videos I found:")
	for _, u := range urls {
		b.WriteString("\n- ")
		b.WriteString(u)
	}
	return b.String()
}

func outputValue(c Content) any {
	switch val := c.(type) {
	case Text:
		return string(val)
	case Structured:
		return map[string]any(val)
	default:
		return String(c)
	}
}
