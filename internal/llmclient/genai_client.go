// internal/llmclient/genai_client.go
package llmclient

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/alris-cli/api/schemas"
	"github.com/xkilldash9x/alris-cli/internal/config"
)

// GenAIClient talks to Gemini through the Google GenAI SDK.
type GenAIClient struct {
	client *genai.Client
	config config.LLMModelConfig
	logger *zap.Logger
}

var _ schemas.LLMClient = (*GenAIClient)(nil)

// NewGenAIClient initializes the SDK client. cfg.Endpoint, when set,
// replaces the SDK's base URL.
func NewGenAIClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API Key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GenAIClient{client: client, config: cfg, logger: logger.Named("llm_client.genai")}, nil
}

// Generate runs one GenerateContent call. The SDK does its own retrying.
func (c *GenAIClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if c.config.APITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.APITimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, genai.Text(req.UserPrompt), c.buildConfig(req))
	if err != nil {
		return "", fmt.Errorf("genai generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("genai returned no candidates")
	}

	fields := []zap.Field{zap.Duration("duration", time.Since(start))}
	if resp.UsageMetadata != nil {
		fields = append(fields,
			zap.Int32("prompt_tokens", resp.UsageMetadata.PromptTokenCount),
			zap.Int32("completion_tokens", resp.UsageMetadata.CandidatesTokenCount))
	}
	c.logger.Info("LLM generation complete (GenAI)", fields...)
	return resp.Text(), nil
}

// Close is a no-op; the SDK client has nothing to release.
func (c *GenAIClient) Close() error { return nil }

func (c *GenAIClient) buildConfig(req schemas.GenerationRequest) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature(req.Options, c.config))),
	}
	if req.SystemPrompt != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if c.config.TopP > 0 {
		gc.TopP = genai.Ptr(c.config.TopP)
	}
	if c.config.TopK > 0 {
		gc.TopK = genai.Ptr(float32(c.config.TopK))
	}
	if c.config.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(c.config.MaxTokens)
	}
	if req.Options.ForceJSONFormat {
		gc.ResponseMIMEType = "application/json"
	}

	categories := make([]string, 0, len(c.config.SafetyFilters))
	for category := range c.config.SafetyFilters {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		gc.SafetySettings = append(gc.SafetySettings, &genai.SafetySetting{
			Category:  genai.HarmCategory(category),
			Threshold: genai.HarmBlockThreshold(c.config.SafetyFilters[category]),
		})
	}
	return gc
}
