// Package agent runs the multi-step tool loop behind browser and general
// commands.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/api/schemas"
	"github.com/xkilldash9x/alris-cli/internal/config"
	"github.com/xkilldash9x/alris-cli/internal/conversation"
	"github.com/xkilldash9x/alris-cli/internal/llmutil"
)

// DefaultMaxIterations bounds the loop when the config leaves it unset.
const DefaultMaxIterations = 6

// Allows for mocking in tests.
var uuidNewString = uuid.NewString

// step is one model reply in the loop protocol.
type step struct {
	Thought     string `json:"thought"`
	Action      string `json:"action"`
	ActionInput any    `json:"action_input"`
	FinalAnswer any    `json:"final_answer"`
}

// Runner drives the tool loop for one command at a time.
type Runner struct {
	completer schemas.Completer
	tools     *Registry
	memory    *Memory
	cfg       config.AgentConfig
	logger    *zap.Logger
}

// NewRunner creates a Runner. memory may be nil to disable thread history.
func NewRunner(completer schemas.Completer, tools *Registry, memory *Memory, cfg config.AgentConfig, logger *zap.Logger) *Runner {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	return &Runner{
		completer: completer,
		tools:     tools,
		memory:    memory,
		cfg:       cfg,
		logger:    logger.Named("agent"),
	}
}

// Execute runs the loop for command and returns this execution's messages:
// the system prompt, the command, and every assistant and tool message that
// followed. Earlier turns of the thread shape the prompt but are not
// returned. Tool failures never abort the loop; only a failure to reach the
// model on the first step is returned as an error.
func (r *Runner) Execute(ctx context.Context, command, threadID string) ([]conversation.Message, error) {
	msgs := []conversation.Message{
		{Role: conversation.RoleSystem, Content: conversation.Text(systemPrompt(r.tools))},
		{Role: conversation.RoleHuman, Content: conversation.Text(command)},
	}
	history := r.memory.Load(threadID)
	logger := r.logger.With(zap.String("thread_id", threadID))

	finished := false
	for i := 0; i < r.cfg.MaxIterations; i++ {
		// 1. Ask the model for the next step.
		prompt := renderTranscript(withHistory(msgs, history))
		reply, err := r.complete(ctx, prompt)
		if err != nil {
			if i == 0 {
				return nil, fmt.Errorf("%w: %v", schemas.ErrCollaboratorUnavailable, err)
			}
			logger.Error("Model call failed mid-loop.", zap.Int("step", i+1), zap.Error(err))
			msgs = append(msgs, assistant(conversation.Text(
				"I ran into a problem reaching the language model before I could finish. Please try again.")))
			finished = true
			break
		}

		// 2. Parse it. Anything that is not a protocol step is the answer.
		st, err := llmutil.ParseJSONResponse[step](reply)
		if err != nil || (st.Action == "" && st.FinalAnswer == nil) {
			logger.Debug("Reply is not a protocol step, treating it as the final answer.", zap.Int("step", i+1))
			msgs = append(msgs, assistant(conversation.Text(strings.TrimSpace(reply))))
			finished = true
			break
		}
		if st.Action == "" {
			msgs = append(msgs, assistant(conversation.FromValue(st.FinalAnswer)))
			finished = true
			break
		}

		// 3. Run the tool and wait for its observation.
		input := actionInput(st.ActionInput)
		logger.Info("Invoking tool.",
			zap.Int("step", i+1),
			zap.String("tool", st.Action),
			zap.String("thought", st.Thought))
		msgs = append(msgs, assistant(conversation.Text(strings.TrimSpace(reply))))
		msgs = append(msgs, r.invoke(ctx, st.Action, input))
		settle(msgs[len(msgs)-1].Content)
	}

	if !finished {
		logger.Warn("Step limit reached.", zap.Int("max_iterations", r.cfg.MaxIterations))
		msgs = append(msgs, assistant(conversation.Text(fmt.Sprintf(
			"I reached the limit of %d steps before finishing this request. Here is what I found so far; let me know if I should continue.",
			r.cfg.MaxIterations))))
	}

	r.memory.Append(threadID, msgs[1:]...)
	return msgs, nil
}

func (r *Runner) complete(ctx context.Context, prompt string) (string, error) {
	if r.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.StepTimeout)
		defer cancel()
	}
	start := time.Now()
	reply, err := r.completer.Complete(ctx, prompt)
	r.logger.Debug("Model step finished.", zap.Duration("took", time.Since(start)), zap.Error(err))
	return reply, err
}

// invoke launches a tool as pending content. Failures become placeholders.
func (r *Runner) invoke(ctx context.Context, name, input string) conversation.Message {
	msg := conversation.Message{Role: conversation.RoleTool, Name: name, ToolCallID: uuidNewString()}

	tool, ok := r.tools.Get(name)
	if !ok {
		err := &ToolError{Tool: name, Err: fmt.Errorf("unknown tool")}
		r.logger.Warn("Model asked for an unknown tool.", zap.String("tool", name))
		msg.Content = conversation.Text("Error: " + err.Error())
		return msg
	}

	msg.Content = conversation.Go(func() (conversation.Content, error) {
		out, err := tool.Call(ctx, input)
		if err != nil {
			toolErr := &ToolError{Tool: name, Err: err}
			r.logger.Warn("Tool call failed.", zap.String("tool", name), zap.Error(err))
			return conversation.Text("Error: " + toolErr.Error()), nil
		}
		return conversation.FromValue(out), nil
	})
	return msg
}

func assistant(c conversation.Content) conversation.Message {
	return conversation.Message{Role: conversation.RoleAssistant, Content: c}
}

// withHistory splices the thread's earlier turns in after the system prompt.
func withHistory(msgs, history []conversation.Message) []conversation.Message {
	if len(history) == 0 {
		return msgs
	}
	out := make([]conversation.Message, 0, len(msgs)+len(history))
	out = append(out, msgs[0])
	out = append(out, history...)
	return append(out, msgs[1:]...)
}

// actionInput renders the model's action_input as the tool's string input.
func actionInput(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	}
}
