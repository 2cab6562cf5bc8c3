package llmclient

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/api/schemas"
)

// LLMRouter implements the LLMClient interface and routes requests by tier.
type LLMRouter struct {
	logger  *zap.Logger
	clients map[schemas.ModelTier]schemas.LLMClient
}

var _ schemas.LLMClient = (*LLMRouter)(nil)

// NewLLMRouter creates a new router with the specified clients for each tier.
func NewLLMRouter(logger *zap.Logger, fastClient, powerfulClient schemas.LLMClient) (*LLMRouter, error) {
	if fastClient == nil || powerfulClient == nil {
		return nil, fmt.Errorf("both fast and powerful tier clients must be provided")
	}

	return &LLMRouter{
		logger: logger.Named("llm_router"),
		clients: map[schemas.ModelTier]schemas.LLMClient{
			schemas.TierFast:     fastClient,
			schemas.TierPowerful: powerfulClient,
		},
	}, nil
}

// Generate selects the client for the request's tier. An empty tier means
// the powerful one.
func (r *LLMRouter) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	tier := req.Tier
	if tier == "" {
		tier = schemas.TierPowerful
	}

	client, ok := r.clients[tier]
	if !ok {
		return "", fmt.Errorf("no LLM client configured for tier: %s", tier)
	}

	r.logger.Debug("Routing LLM request", zap.String("tier", string(tier)))
	return client.Generate(ctx, req)
}

// Close closes every distinct underlying client once.
func (r *LLMRouter) Close() error {
	var errs []error
	seen := make(map[schemas.LLMClient]bool, len(r.clients))
	for _, tier := range []schemas.ModelTier{schemas.TierFast, schemas.TierPowerful} {
		client := r.clients[tier]
		if seen[client] {
			continue
		}
		seen[client] = true
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s tier: %w", tier, err))
		}
	}
	return errors.Join(errs...)
}
