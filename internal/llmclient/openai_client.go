// internal/llmclient/openai_client.go
package llmclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/api/schemas"
	"github.com/xkilldash9x/alris-cli/internal/config"
)

const (
	defaultOpenAIEndpoint = "https://api.openai.com/v1"
	defaultOllamaEndpoint = "http://localhost:11434/v1"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint,
// which includes a local Ollama server.
type OpenAIClient struct {
	restTransport
	apiKey   string
	endpoint string
	config   config.LLMModelConfig
}

var _ schemas.LLMClient = (*OpenAIClient)(nil)

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    float64               `json:"temperature"`
	TopP           float32               `json:"top_p,omitempty"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIClient initializes the client. The API key is required for the
// openai provider and optional for ollama.
func NewOpenAIClient(cfg config.LLMModelConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.Provider != config.ProviderOllama && cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API Key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("a model name is required")
	}

	base := cfg.Endpoint
	if base == "" {
		base = defaultOpenAIEndpoint
		if cfg.Provider == config.ProviderOllama {
			base = defaultOllamaEndpoint
		}
	}

	return &OpenAIClient{
		restTransport: newRESTTransport(string(cfg.Provider), cfg.APITimeout, logger.Named("llm_client."+string(cfg.Provider))),
		apiKey:        cfg.APIKey,
		endpoint:      strings.TrimRight(base, "/") + "/chat/completions",
		config:        cfg,
	}, nil
}

// Generate sends a chat completion request, retrying transient failures.
func (c *OpenAIClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	start := time.Now()
	respBody, err := c.post(ctx, c.endpoint, headers, body)
	if err != nil {
		return "", err
	}

	var payload openAIResponse
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return "", fmt.Errorf("failed to decode response payload: %w", err)
	}
	if len(payload.Choices) == 0 {
		return "", fmt.Errorf("%s API returned no choices", c.provider)
	}

	c.logger.Info("LLM generation complete (OpenAI-compatible)",
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_tokens", payload.Usage.PromptTokens),
		zap.Int("completion_tokens", payload.Usage.CompletionTokens),
	)
	return payload.Choices[0].Message.Content, nil
}

// Close is a no-op.
func (c *OpenAIClient) Close() error { return nil }

func (c *OpenAIClient) buildRequest(req schemas.GenerationRequest) openAIRequest {
	out := openAIRequest{
		Model:       c.config.Model,
		Temperature: temperature(req.Options, c.config),
		TopP:        c.config.TopP,
		MaxTokens:   c.config.MaxTokens,
	}
	if req.SystemPrompt != "" {
		out.Messages = append(out.Messages, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	out.Messages = append(out.Messages, openAIMessage{Role: "user", Content: req.UserPrompt})
	if req.Options.ForceJSONFormat {
		out.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}
	return out
}
