package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/alris-cli/api/schemas"
	"github.com/xkilldash9x/alris-cli/internal/config"
	"github.com/xkilldash9x/alris-cli/internal/conversation"
)

// scriptedCompleter replays canned replies and records every prompt.
type scriptedCompleter struct {
	mu      sync.Mutex
	replies []string
	errs    map[int]error
	prompts []string
}

func (s *scriptedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.prompts)
	s.prompts = append(s.prompts, prompt)
	if err, ok := s.errs[i]; ok {
		return "", err
	}
	if i >= len(s.replies) {
		return s.replies[len(s.replies)-1], nil
	}
	return s.replies[i], nil
}

func echoTool() Tool {
	return NewTool("echo", "Echo the input back.", func(ctx context.Context, input string) (any, error) {
		if input == "fail" {
			return nil, errors.New("boom")
		}
		return "pong: " + input, nil
	})
}

func newTestRunner(t *testing.T, c schemas.Completer, mem *Memory, maxIterations int) (*Runner, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	calls := 0
	orig := uuidNewString
	uuidNewString = func() string {
		calls++
		return fmt.Sprintf("call-%d", calls)
	}
	t.Cleanup(func() { uuidNewString = orig })

	r := NewRunner(c, NewRegistry(echoTool()), mem, config.AgentConfig{MaxIterations: maxIterations}, zap.New(core))
	return r, logs
}

func TestRunner_FinalAnswerOnFirstStep(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := &scriptedCompleter{replies: []string{`{"thought": "easy", "final_answer": "Hello! I am Alris."}`}}
	r, _ := newTestRunner(t, c, nil, 0)

	msgs, err := r.Execute(context.Background(), "who are you?", "")
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, conversation.RoleSystem, msgs[0].Role)
	assert.Contains(t, conversation.String(msgs[0].Content), "Available Tools:")
	assert.Contains(t, conversation.String(msgs[0].Content), "- echo: Echo the input back.")
	assert.Equal(t, conversation.Message{Role: conversation.RoleHuman, Content: conversation.Text("who are you?")}, msgs[1])
	assert.Equal(t, conversation.Text("Hello! I am Alris."), msgs[2].Content)

	require.Len(t, c.prompts, 1)
	assert.True(t, strings.HasSuffix(c.prompts[0], "User: who are you?\nAssistant:"))
}

func TestRunner_PlainTextIsTheAnswer(t *testing.T) {
	c := &scriptedCompleter{replies: []string{"  Sure, happy to help.  "}}
	r, _ := newTestRunner(t, c, nil, 0)

	msgs, err := r.Execute(context.Background(), "hi", "")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, conversation.Text("Sure, happy to help."), msgs[2].Content)
}

func TestRunner_StructuredFinalAnswer(t *testing.T) {
	c := &scriptedCompleter{replies: []string{`{"final_answer": {"message": "done", "video_urls": []}}`}}
	r, _ := newTestRunner(t, c, nil, 0)

	msgs, err := r.Execute(context.Background(), "hi", "")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	structured, ok := msgs[2].Content.(conversation.Structured)
	require.True(t, ok, "a JSON object answer stays structured")
	assert.Equal(t, "done", structured["message"])
}

func TestRunner_ToolRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := &scriptedCompleter{replies: []string{
		`{"thought": "use the tool", "action": "echo", "action_input": "ping"}`,
		`{"thought": "done", "final_answer": "The tool said pong."}`,
	}}
	r, logs := newTestRunner(t, c, nil, 0)

	msgs, err := r.Execute(context.Background(), "ping it", "")
	require.NoError(t, err)
	require.Len(t, msgs, 5)

	assert.Equal(t, conversation.RoleAssistant, msgs[2].Role)
	assert.Contains(t, conversation.String(msgs[2].Content), `"action": "echo"`)

	tool := msgs[3]
	assert.Equal(t, conversation.RoleTool, tool.Role)
	assert.Equal(t, "echo", tool.Name)
	assert.Equal(t, "call-1", tool.ToolCallID)
	pending, ok := tool.Content.(*conversation.Pending)
	require.True(t, ok, "tool output is produced concurrently")
	assert.True(t, pending.Done(), "the observation is settled before the next step")
	out, err := pending.Await()
	require.NoError(t, err)
	assert.Equal(t, conversation.Text("pong: ping"), out)

	assert.Equal(t, conversation.Text("The tool said pong."), msgs[4].Content)

	require.Len(t, c.prompts, 2)
	assert.Contains(t, c.prompts[1], "Observation (echo): pong: ping\n")
	assert.Equal(t, 1, logs.FilterMessage("Invoking tool.").Len())
}

func TestRunner_ObjectActionInputIsJSON(t *testing.T) {
	var got string
	c := &scriptedCompleter{replies: []string{
		`{"action": "capture", "action_input": {"form_data": {"name": "Ada"}}}`,
		`{"final_answer": "ok"}`,
	}}
	r, _ := newTestRunner(t, c, nil, 0)
	r.tools.Register(NewTool("capture", "Record input.", func(ctx context.Context, input string) (any, error) {
		got = input
		return map[string]any{"status": "success"}, nil
	}))

	_, err := r.Execute(context.Background(), "fill it", "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"form_data": {"name": "Ada"}}`, got)
}

func TestRunner_ToolFailuresBecomeObservations(t *testing.T) {
	defer goleak.VerifyNone(t)

	testCases := []struct {
		name     string
		reply    string
		expected string
	}{
		{"UnknownTool", `{"action": "teleport", "action_input": "mars"}`, "Error: tool invocation failed: teleport: unknown tool"},
		{"ToolError", `{"action": "echo", "action_input": "fail"}`, "Error: tool invocation failed: echo: boom"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := &scriptedCompleter{replies: []string{tc.reply, `{"final_answer": "Sorry, that did not work."}`}}
			r, _ := newTestRunner(t, c, nil, 0)

			msgs, err := r.Execute(context.Background(), "do it", "")
			require.NoError(t, err, "tool failures never abort the loop")
			require.Len(t, msgs, 5)
			assert.Equal(t, tc.expected, conversation.String(settle(msgs[3].Content)))
			assert.Contains(t, c.prompts[1], tc.expected)
		})
	}
}

func TestRunner_StepLimit(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := &scriptedCompleter{replies: []string{`{"action": "echo", "action_input": "again"}`}}
	r, logs := newTestRunner(t, c, nil, 2)

	msgs, err := r.Execute(context.Background(), "loop forever", "")
	require.NoError(t, err)
	// system, human, 2 x (assistant, tool), limit notice
	require.Len(t, msgs, 7)
	assert.Len(t, c.prompts, 2)
	last := conversation.String(msgs[6].Content)
	assert.Contains(t, last, "limit of 2 steps")
	assert.Equal(t, 1, logs.FilterMessage("Step limit reached.").Len())
}

func TestRunner_ModelErrors(t *testing.T) {
	t.Run("first step is unavailable", func(t *testing.T) {
		c := &scriptedCompleter{replies: []string{`{"final_answer": "x"}`}, errs: map[int]error{0: errors.New("503")}}
		r, _ := newTestRunner(t, c, nil, 0)

		msgs, err := r.Execute(context.Background(), "hi", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, schemas.ErrCollaboratorUnavailable)
		assert.Contains(t, err.Error(), "503")
		assert.Nil(t, msgs)
	})

	t.Run("later step apologizes", func(t *testing.T) {
		c := &scriptedCompleter{
			replies: []string{`{"action": "echo", "action_input": "a"}`},
			errs:    map[int]error{1: errors.New("connection reset")},
		}
		r, logs := newTestRunner(t, c, nil, 0)

		msgs, err := r.Execute(context.Background(), "hi", "")
		require.NoError(t, err)
		require.Len(t, msgs, 5)
		assert.Contains(t, conversation.String(msgs[4].Content), "problem reaching the language model")
		assert.Equal(t, 1, logs.FilterMessage("Model call failed mid-loop.").Len())
	})
}

func TestRunner_ThreadMemory(t *testing.T) {
	defer goleak.VerifyNone(t)

	mem := NewMemory(0)
	c := &scriptedCompleter{replies: []string{
		`{"final_answer": "Nice to meet you, Ada."}`,
		`{"final_answer": "Your name is Ada."}`,
	}}
	r, _ := newTestRunner(t, c, mem, 0)

	_, err := r.Execute(context.Background(), "my name is Ada", "thread-1")
	require.NoError(t, err)

	msgs, err := r.Execute(context.Background(), "what is my name?", "thread-1")
	require.NoError(t, err)
	require.Len(t, msgs, 3, "earlier turns shape the prompt but are not returned")

	prompt := c.prompts[1]
	first := strings.Index(prompt, "User: my name is Ada")
	second := strings.Index(prompt, "User: what is my name?")
	require.GreaterOrEqual(t, first, 0)
	assert.Greater(t, second, first)
	assert.Contains(t, prompt, "Assistant: Nice to meet you, Ada.")

	history := mem.Load("thread-1")
	require.Len(t, history, 4)
	assert.Equal(t, conversation.RoleHuman, history[0].Role)

	_, err = r.Execute(context.Background(), "fresh start", "thread-2")
	require.NoError(t, err)
	assert.NotContains(t, c.prompts[2], "Ada")
}

func TestActionInput(t *testing.T) {
	assert.Equal(t, "", actionInput(nil))
	assert.Equal(t, "https://example.com", actionInput("https://example.com"))
	assert.JSONEq(t, `{"a": 1}`, actionInput(map[string]any{"a": 1}))
	assert.Equal(t, "3", actionInput(3))
}
