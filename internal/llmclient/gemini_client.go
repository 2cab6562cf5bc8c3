// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"fmt"
	"sort"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/api/schemas"
	"github.com/xkilldash9x/alris-cli/internal/config"
)

// GeminiClient talks to the Gemini generateContent REST endpoint.
type GeminiClient struct {
	restTransport
	apiKey   string
	endpoint string
	config   config.LLMModelConfig
}

var _ schemas.LLMClient = (*GeminiClient)(nil)

// -- Gemini API Request/Response Structures --

type GeminiContent struct {
	Parts []GeminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type GeminiPart struct {
	Text string `json:"text"`
}

type GeminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type GeminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"response_mime_type,omitempty"`
	TopP             float32 `json:"topP,omitempty"`
	TopK             int     `json:"topK,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
}

type GeminiRequestPayload struct {
	Contents          []GeminiContent        `json:"contents"`
	SystemInstruction *GeminiContent         `json:"system_instruction,omitempty"`
	SafetySettings    []GeminiSafetySetting  `json:"safetySettings,omitempty"`
	GenerationConfig  GeminiGenerationConfig `json:"generationConfig"`
}

type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type GeminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type GeminiResponsePayload struct {
	Candidates    []GeminiCandidate `json:"candidates"`
	UsageMetadata GeminiUsage       `json:"usageMetadata"`
}

// NewGeminiClient initializes the client.
func NewGeminiClient(cfg config.LLMModelConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API Key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", cfg.Model)
	}

	return &GeminiClient{
		restTransport: newRESTTransport("gemini", cfg.APITimeout, logger.Named("llm_client.gemini")),
		apiKey:        cfg.APIKey,
		endpoint:      endpoint,
		config:        cfg,
	}, nil
}

// Generate sends the prompts to Gemini, retrying transient failures.
func (c *GeminiClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	body, err := json.Marshal(c.buildRequestPayload(req))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	start := time.Now()
	respBody, err := c.post(ctx, c.endpoint, map[string]string{"x-goog-api-key": c.apiKey}, body)
	if err != nil {
		return "", err
	}

	var payload GeminiResponsePayload
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return "", fmt.Errorf("failed to decode response payload: %w", err)
	}
	if len(payload.Candidates) == 0 {
		return "", fmt.Errorf("gemini API returned no candidates")
	}
	candidate := payload.Candidates[0]
	if len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("gemini API returned empty content parts (Reason: %s)", candidate.FinishReason)
	}

	c.logger.Info("LLM generation complete (Gemini)",
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_tokens", payload.UsageMetadata.PromptTokenCount),
		zap.Int("completion_tokens", payload.UsageMetadata.CandidatesTokenCount),
		zap.Int("total_tokens", payload.UsageMetadata.TotalTokenCount),
	)

	var text string
	for _, part := range candidate.Content.Parts {
		text += part.Text
	}
	return text, nil
}

// Close is a no-op; the HTTP client holds no exclusive resources.
func (c *GeminiClient) Close() error { return nil }

func (c *GeminiClient) buildRequestPayload(req schemas.GenerationRequest) GeminiRequestPayload {
	genConfig := GeminiGenerationConfig{
		Temperature:     temperature(req.Options, c.config),
		TopP:            c.config.TopP,
		TopK:            c.config.TopK,
		MaxOutputTokens: c.config.MaxTokens,
	}
	if req.Options.ForceJSONFormat {
		genConfig.ResponseMimeType = "application/json"
	}

	payload := GeminiRequestPayload{
		Contents:         []GeminiContent{{Role: "user", Parts: []GeminiPart{{Text: req.UserPrompt}}}},
		GenerationConfig: genConfig,
		SafetySettings:   c.safetySettings(),
	}
	if req.SystemPrompt != "" {
		payload.SystemInstruction = &GeminiContent{Parts: []GeminiPart{{Text: req.SystemPrompt}}}
	}
	return payload
}

// safetySettings is sorted by category so payloads are reproducible.
func (c *GeminiClient) safetySettings() []GeminiSafetySetting {
	settings := make([]GeminiSafetySetting, 0, len(c.config.SafetyFilters))
	for category, threshold := range c.config.SafetyFilters {
		settings = append(settings, GeminiSafetySetting{Category: category, Threshold: threshold})
	}
	sort.Slice(settings, func(i, j int) bool { return settings[i].Category < settings[j].Category })
	return settings
}

// temperature prefers the request's own setting over the model default.
func temperature(opts schemas.GenerationOptions, cfg config.LLMModelConfig) float64 {
	if opts.Temperature > 0 {
		return opts.Temperature
	}
	return float64(cfg.Temperature)
}
