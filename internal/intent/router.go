// Package intent decides which action family a command belongs to and
// extracts the parameters each family needs.
package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/api/schemas"
	"github.com/xkilldash9x/alris-cli/internal/llmutil"
)

// classifiable are the intents the model may answer with.
var classifiable = []schemas.Intent{
	schemas.IntentBrowser,
	schemas.IntentEmail,
	schemas.IntentCalendar,
	schemas.IntentGeneral,
}

// formKeywords turn a browser command into a form fill.
var formKeywords = []string{
	"fill form", "fill the form", "registration", "register",
	"sign up", "sign me up", "submit form", "apply", "subscribe",
}

// Decision is the routing outcome of one command.
type Decision struct {
	Intent    schemas.Intent
	URL       string // Direct video link, as written in the command.
	Query     string // Video search query.
	Reasoning string // Classifier explanation, when one was asked.
}

type classification struct {
	Intent    string `json:"intent"`
	Reasoning string `json:"reasoning"`
}

// Router classifies commands.
type Router struct {
	completer schemas.Completer
	logger    *zap.Logger
}

// NewRouter creates a Router.
func NewRouter(completer schemas.Completer, logger *zap.Logger) *Router {
	return &Router{completer: completer, logger: logger.Named("intent_router")}
}

// Route decides the intent of command. Direct video links and the fixed
// search phrasings are answered without calling the model. Classification
// errors are fatal and never retried.
func (r *Router) Route(ctx context.Context, command string) (Decision, error) {
	// 1. A direct link bypasses search entirely.
	if u := DetectVideoURL(command); u != "" {
		r.logger.Info("Detected direct video link.", zap.String("url", u))
		return Decision{Intent: schemas.IntentVideoDirect, URL: u}, nil
	}

	// 2. Known search phrasings.
	if q, ok := matchSearch(command); ok {
		r.logger.Info("Detected video search.", zap.String("query", q))
		return Decision{Intent: schemas.IntentVideoSearch, Query: q}, nil
	}

	// 3. Ask the model.
	c, err := r.classify(ctx, command)
	if err != nil {
		return Decision{}, err
	}
	d := Decision{Intent: schemas.Intent(c.Intent), Reasoning: c.Reasoning}

	// 4. Form commands are browser commands with a form keyword.
	if d.Intent == schemas.IntentBrowser && IsFormCommand(command) {
		d.Intent = schemas.IntentFormFill
	}
	r.logger.Info("Classified command.", zap.String("intent", string(d.Intent)), zap.String("reasoning", d.Reasoning))
	return d, nil
}

func (r *Router) classify(ctx context.Context, command string) (classification, error) {
	names := make([]string, 0, len(classifiable))
	for _, i := range classifiable {
		names = append(names, string(i))
	}
	prompt := render(classificationPrompt, "intents", strings.Join(names, ", "), "command", command)

	resp, err := r.completer.Complete(ctx, prompt)
	if err != nil {
		return classification{}, collaboratorError("intent classification", err)
	}

	parsed, err := llmutil.ParseJSONResponse[classification](resp)
	if err != nil {
		r.logger.Error("Classifier response was not JSON.", zap.String("response", resp), zap.Error(err))
		return classification{}, fmt.Errorf("%w: %v", schemas.ErrClassificationUnparseable, err)
	}

	intent := strings.ToLower(strings.TrimSpace(parsed.Intent))
	for _, known := range classifiable {
		if intent == string(known) {
			parsed.Intent = intent
			return *parsed, nil
		}
	}
	r.logger.Error("Classifier returned an unknown intent.", zap.String("intent", parsed.Intent))
	return classification{}, fmt.Errorf("%w: unknown intent %q", schemas.ErrClassificationUnparseable, parsed.Intent)
}

// IsFormCommand reports whether command mentions one of the form keywords.
func IsFormCommand(command string) bool {
	lower := strings.ToLower(command)
	for _, kw := range formKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// collaboratorError classifies a completion transport failure.
func collaboratorError(op string, err error) error {
	if errors.Is(err, schemas.ErrCollaboratorUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", schemas.ErrCollaboratorUnavailable, op, err)
}
