package llmclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/alris-cli/api/schemas"
	"github.com/xkilldash9x/alris-cli/internal/config"
)

// MockLLMClient is a mock implementation of the LLMClient interface for testing.
type MockLLMClient struct {
	mock.Mock
	Name string
}

func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// setupTestLogger returns a logger backed by an observer.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

// getValidLLMConfig returns a valid Gemini model configuration.
func getValidLLMConfig() config.LLMModelConfig {
	return config.LLMModelConfig{
		Provider:    config.ProviderGemini,
		APIKey:      "test-api-key",
		Model:       "test-model",
		APITimeout:  5 * time.Second,
		Temperature: 0.7,
		TopP:        0.9,
		TopK:        50,
	}
}

// fastBackoff keeps retry tests quick.
func fastBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 20 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return b
}

// newServer starts an httptest server torn down with the test.
func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func createTestRequest() schemas.GenerationRequest {
	return schemas.GenerationRequest{
		SystemPrompt: "System prompt instructions.",
		UserPrompt:   "User query.",
		Options:      schemas.GenerationOptions{Temperature: 0.5},
	}
}
