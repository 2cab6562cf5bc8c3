package llmclient

import (
	"context"

	"github.com/xkilldash9x/alris-cli/api/schemas"
)

// Completer adapts an LLMClient to the prompt-in, text-out interface used by
// the router and the execution loop.
type Completer struct {
	client  schemas.LLMClient
	tier    schemas.ModelTier
	options schemas.GenerationOptions
}

var _ schemas.Completer = (*Completer)(nil)

// NewCompleter returns a Completer sending every prompt to tier with opts.
func NewCompleter(client schemas.LLMClient, tier schemas.ModelTier, opts schemas.GenerationOptions) *Completer {
	return &Completer{client: client, tier: tier, options: opts}
}

// Complete sends prompt as the user turn.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	return c.client.Generate(ctx, schemas.GenerationRequest{
		UserPrompt: prompt,
		Tier:       c.tier,
		Options:    c.options,
	})
}
