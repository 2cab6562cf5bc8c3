// File: internal/orchestrator/orchestrator.go
// Description: Routes one command to the path that handles its intent and
// assembles the response envelope. Every collaborator is injected through a
// narrow interface so the flow can be tested without a browser or a model.

package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/api/schemas"
	"github.com/xkilldash9x/alris-cli/internal/conversation"
	"github.com/xkilldash9x/alris-cli/internal/formfill"
	"github.com/xkilldash9x/alris-cli/internal/intent"
)

// Allows for mocking in tests.
var uuidNewString = uuid.NewString

// ErrEmptyCommand is reported for blank commands.
var ErrEmptyCommand = errors.New("command is empty")

const historyTimeout = 5 * time.Second

// Router decides the intent of a command.
type Router interface {
	Route(ctx context.Context, command string) (intent.Decision, error)
}

// Extractor pulls structured parameters out of a command.
type Extractor interface {
	ExtractForm(ctx context.Context, command string) (*intent.FormExtraction, error)
	ExtractEvent(ctx context.Context, command string, now time.Time) (*intent.EventExtraction, error)
	ExtractEmail(ctx context.Context, command string) (*intent.EmailExtraction, error)
}

// VideoSearcher runs a validated video search.
type VideoSearcher interface {
	Search(ctx context.Context, query string) schemas.ExecutionResult
}

// FormFiller fills the first form on a page.
type FormFiller interface {
	FillURL(ctx context.Context, rawURL string, data map[string]any) (*formfill.FillReport, error)
}

// Executor runs the multi-step tool loop.
type Executor interface {
	Execute(ctx context.Context, command, threadID string) ([]conversation.Message, error)
}

// Reducer condenses a message sequence into a result.
type Reducer interface {
	Reduce(ctx context.Context, command string, msgs []conversation.Message) schemas.ExecutionResult
}

// HistoryRecorder persists processed commands. store.Repository satisfies it.
type HistoryRecorder interface {
	Append(ctx context.Context, entry schemas.HistoryEntry) error
}

// Deps are the collaborators of an Orchestrator. History and Location are
// optional.
type Deps struct {
	Router    Router
	Extractor Extractor
	Videos    VideoSearcher
	Forms     FormFiller
	Executor  Executor
	Reducer   Reducer
	History   HistoryRecorder
	Location  *time.Location
}

// Orchestrator processes commands end to end.
type Orchestrator struct {
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
}

// New creates an Orchestrator.
func New(deps Deps, logger *zap.Logger) (*Orchestrator, error) {
	if deps.Router == nil ||
		deps.Extractor == nil ||
		deps.Videos == nil ||
		deps.Forms == nil ||
		deps.Executor == nil ||
		deps.Reducer == nil ||
		logger == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	return &Orchestrator{deps: deps, logger: logger.Named("orchestrator"), now: time.Now}, nil
}

// ProcessCommand handles one command and always returns an envelope. An empty
// threadID starts a new thread.
func (o *Orchestrator) ProcessCommand(ctx context.Context, command, threadID string) (resp schemas.CommandResponse) {
	if threadID == "" {
		threadID = uuidNewString()
	}
	logger := o.logger.With(zap.String("thread_id", threadID))
	logger.Info("Processing command.", zap.String("command", command))

	defer func() { o.record(ctx, resp) }()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic while processing command.", zap.Any("panic", r), zap.Stack("stack"))
			resp = errorEnvelope(threadID, command, "Something went wrong while processing your command.",
				fmt.Errorf("panic: %v", r))
		}
	}()

	if strings.TrimSpace(command) == "" {
		return errorEnvelope(threadID, command, "Please tell me what you would like me to do.", ErrEmptyCommand)
	}

	// 1. Decide the path.
	decision, err := o.deps.Router.Route(ctx, command)
	if err != nil {
		logger.Error("Failed to route command.", zap.Error(err))
		return errorEnvelope(threadID, command, routeFailureMessage(err), err)
	}

	// 2. Run it.
	result := o.dispatch(ctx, decision, command, threadID)

	// 3. Wrap it.
	resp = schemas.CommandResponse{
		ThreadID: threadID,
		Intent:   decision.Intent,
		Command:  command,
		Result:   result,
	}
	if len(result.VideoURLs) > 0 {
		resp.VideoURLs = result.VideoURLs
		logger.Info("Propagating video URLs to response.", zap.Int("count", len(result.VideoURLs)))
	}
	logger.Info("Command processed.",
		zap.String("intent", string(resp.Intent)),
		zap.String("status", string(result.Status)))
	return resp
}

func (o *Orchestrator) dispatch(ctx context.Context, d intent.Decision, command, threadID string) schemas.ExecutionResult {
	switch d.Intent {
	case schemas.IntentVideoDirect:
		return directVideoResult(d.URL)
	case schemas.IntentVideoSearch:
		return o.deps.Videos.Search(ctx, d.Query)
	case schemas.IntentFormFill:
		return o.fillForm(ctx, command)
	case schemas.IntentCalendar:
		return o.prepareEvent(ctx, command)
	case schemas.IntentEmail:
		return o.prepareEmail(ctx, command)
	default:
		return o.execute(ctx, command, threadID)
	}
}

func directVideoResult(url string) schemas.ExecutionResult {
	res := schemas.ExecutionResult{
		Status:    schemas.StatusSuccess,
		Message:   fmt.Sprintf("Here's the YouTube video you shared: %s", url),
		VideoURLs: []string{url},
	}
	if action, ok := intent.ToAction(schemas.IntentVideoDirect, map[string]any{"url": url}); ok {
		res.Action = &action
	}
	return res
}

func (o *Orchestrator) fillForm(ctx context.Context, command string) schemas.ExecutionResult {
	ext, err := o.deps.Extractor.ExtractForm(ctx, command)
	if err != nil {
		if errors.Is(err, intent.ErrExtractionUnparseable) {
			return schemas.ClarificationResult(
				"I couldn't work out the form details from that. Please include the form's URL along with your name and email.",
				map[string]any{})
		}
		o.logger.Error("Form extraction failed.", zap.Error(err))
		return schemas.ErrorResult("I couldn't read the form details right now. Please try again.", err)
	}
	if clar := intent.CheckFormRequirements(ext); clar != nil {
		o.logger.Info("Form fill needs clarification.", zap.String("message", clar.Message))
		return clar.Result()
	}

	report, err := o.deps.Forms.FillURL(ctx, ext.URL, ext.FormData)
	switch {
	case errors.Is(err, schemas.ErrNoFieldsMatched):
		msg := fmt.Sprintf("I couldn't match any of your details to the fields of the form at %s.", ext.URL)
		if report != nil {
			msg += " " + report.Summary()
		}
		res := schemas.ErrorResult(msg, err)
		res.Fields = ext.Fields()
		return res
	case err != nil:
		o.logger.Error("Form fill failed.", zap.String("url", ext.URL), zap.Error(err))
		res := schemas.ErrorResult(fmt.Sprintf("I couldn't fill the form at %s: %v", ext.URL, err), err)
		res.Fields = ext.Fields()
		return res
	}

	res := schemas.ExecutionResult{
		Status:      schemas.StatusSuccess,
		Message:     report.Summary(),
		Fields:      ext.Fields(),
		ToolOutputs: []schemas.ToolOutput{{ToolName: "fill_form", ToolOutput: report.ToMap()}},
	}
	if len(report.Screenshot) > 0 {
		res.Screenshot = base64.StdEncoding.EncodeToString(report.Screenshot)
	}
	if action, ok := intent.ToAction(schemas.IntentFormFill, ext.Fields()); ok {
		res.Action = &action
	}
	return res
}

func (o *Orchestrator) prepareEvent(ctx context.Context, command string) schemas.ExecutionResult {
	ev, err := o.deps.Extractor.ExtractEvent(ctx, command, o.now().In(o.deps.Location))
	if err != nil {
		if errors.Is(err, intent.ErrExtractionUnparseable) {
			return schemas.ClarificationResult(
				"I couldn't understand the event details. Please tell me what the event is and when it should happen.",
				map[string]any{})
		}
		o.logger.Error("Event extraction failed.", zap.Error(err))
		return schemas.ErrorResult("I couldn't read the event details right now. Please try again.", err)
	}
	if clar := ev.Clarification(); clar != nil {
		return clar.Result()
	}

	params := ev.Parameters()
	action, _ := intent.ToAction(schemas.IntentCalendar, params)
	title := ev.Title
	if title == "" {
		title = "Untitled event"
	}
	return schemas.ExecutionResult{
		Status:  schemas.StatusSuccess,
		Message: fmt.Sprintf("I've prepared the calendar event '%s' for %s.", title, ev.Start.Format("Monday, January 2 at 3:04 PM")),
		Action:  &action,
	}
}

func (o *Orchestrator) prepareEmail(ctx context.Context, command string) schemas.ExecutionResult {
	em, err := o.deps.Extractor.ExtractEmail(ctx, command)
	if err != nil {
		if errors.Is(err, intent.ErrExtractionUnparseable) {
			return schemas.ClarificationResult(
				"I couldn't understand the email details. Please tell me who it is for and what it should say.",
				map[string]any{})
		}
		o.logger.Error("Email extraction failed.", zap.Error(err))
		return schemas.ErrorResult("I couldn't read the email details right now. Please try again.", err)
	}
	if clar := em.Clarification(); clar != nil {
		return clar.Result()
	}

	action, _ := intent.ToAction(schemas.IntentEmail, em.Parameters())
	msg := fmt.Sprintf("I've prepared an email to %s", strings.Join(em.To, ", "))
	if em.Subject != "" {
		msg += fmt.Sprintf(" with the subject '%s'", em.Subject)
	}
	return schemas.ExecutionResult{
		Status:  schemas.StatusSuccess,
		Message: msg + ".",
		Action:  &action,
	}
}

func (o *Orchestrator) execute(ctx context.Context, command, threadID string) schemas.ExecutionResult {
	msgs, err := o.deps.Executor.Execute(ctx, command, threadID)
	if err != nil {
		o.logger.Error("Execution loop failed.", zap.Error(err))
		return schemas.ErrorResult("I couldn't reach the language model to work on that. Please try again shortly.", err)
	}
	return o.deps.Reducer.Reduce(ctx, command, msgs)
}

// record appends the processed command to the history store. Best effort.
func (o *Orchestrator) record(ctx context.Context, resp schemas.CommandResponse) {
	if o.deps.History == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()

	entry := schemas.HistoryEntry{
		ID:        uuidNewString(),
		ThreadID:  resp.ThreadID,
		Command:   resp.Command,
		Intent:    resp.Intent,
		Status:    resp.Result.Status,
		Message:   resp.Result.Message,
		VideoURLs: resp.VideoURLs,
		CreatedAt: o.now().UTC(),
	}
	if entry.Message == "" {
		entry.Message = resp.Error
	}
	if err := o.deps.History.Append(ctx, entry); err != nil {
		o.logger.Warn("Failed to record command history.", zap.String("thread_id", resp.ThreadID), zap.Error(err))
	}
}

func errorEnvelope(threadID, command, message string, err error) schemas.CommandResponse {
	return schemas.CommandResponse{
		ThreadID: threadID,
		Intent:   schemas.IntentError,
		Command:  command,
		Result:   schemas.ErrorResult(message, err),
		Error:    err.Error(),
	}
}

func routeFailureMessage(err error) string {
	if errors.Is(err, schemas.ErrClassificationUnparseable) {
		return "I couldn't work out what kind of request that is. Could you rephrase it?"
	}
	return "I'm having trouble reaching my language model right now. Please try again shortly."
}
