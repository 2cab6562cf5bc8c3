package schemas

import "context"

// ModelTier allows for selecting a large language model based on a preference
// for speed versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Routing, classification and extraction prompts.
	TierPowerful ModelTier = "powerful" // The multi-step tool loop.
)

// GenerationOptions controls a single generation call.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`       // Controls randomness. Lower is more deterministic.
	ForceJSONFormat bool    `json:"force_json_format"` // If true, asks the model for a JSON response body.
	TopP            float64 `json:"top_p"`
	TopK            int     `json:"top_k"`
}

// GenerationRequest encapsulates a complete request to the LLM, including the
// system and user prompts, the desired model tier, and generation options.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider.
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client.
	Close() error
}

// Completer is the narrow prompt-in, text-out view of an LLM that the routing
// and execution layers depend on.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
