// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/api/schemas"
	"github.com/xkilldash9x/alris-cli/internal/config"
)

// NewModelClient creates a client for a single model configuration.
func NewModelClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	case config.ProviderGenAI:
		return NewGenAIClient(ctx, cfg, logger)
	case config.ProviderOpenAI, config.ProviderOllama:
		return NewOpenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s, %s, %s]",
			cfg.Provider, config.ProviderGemini, config.ProviderGenAI, config.ProviderOpenAI, config.ProviderOllama)
	}
}

// NewClient builds the tier router described by cfg. Both tiers share one
// client when they name the same model.
func NewClient(ctx context.Context, cfg config.LLMRouterConfig, logger *zap.Logger) (*LLMRouter, error) {
	build := func(name string) (schemas.LLMClient, error) {
		modelCfg, ok := cfg.Models[name]
		if !ok {
			return nil, fmt.Errorf("model '%s' is not defined under llm.models", name)
		}
		client, err := NewModelClient(ctx, modelCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create client for model '%s': %w", name, err)
		}
		return client, nil
	}

	fast, err := build(cfg.DefaultFastModel)
	if err != nil {
		return nil, err
	}
	powerful := fast
	if cfg.DefaultPowerfulModel != cfg.DefaultFastModel {
		if powerful, err = build(cfg.DefaultPowerfulModel); err != nil {
			_ = fast.Close()
			return nil, err
		}
	}
	return NewLLMRouter(logger, fast, powerful)
}
