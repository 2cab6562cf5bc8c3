// internal/llmclient/transport.go
package llmclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// backoffFactory builds the retry policy for one request.
type backoffFactory func() backoff.BackOff

func defaultBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second
	return b
}

// restTransport posts JSON to a model endpoint and retries transient failures.
type restTransport struct {
	provider   string
	httpClient *http.Client
	newBackoff backoffFactory
	logger     *zap.Logger
}

func newRESTTransport(provider string, timeout time.Duration, logger *zap.Logger) restTransport {
	return restTransport{
		provider:   provider,
		httpClient: &http.Client{Timeout: timeout},
		newBackoff: defaultBackoff,
		logger:     logger,
	}
}

// post sends body and returns the response body of the first 200 reply.
// Network errors and 429/500/503 are retried; anything else is permanent.
func (t *restTransport) post(ctx context.Context, endpoint string, headers map[string]string, body []byte) ([]byte, error) {
	var respBody []byte

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			httpReq.Header.Set(k, v)
		}

		resp, err := t.httpClient.Do(httpReq)
		if err != nil {
			t.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return t.apiError(resp.StatusCode, data)
		}
		respBody = data
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(t.newBackoff(), ctx)); err != nil {
		return nil, err
	}
	return respBody, nil
}

func (t *restTransport) apiError(statusCode int, body []byte) error {
	t.logger.Error("LLM API returned error status", zap.Int("status", statusCode), zap.String("response", string(body)))
	err := fmt.Errorf("%s API error: status %d, body: %s", t.provider, statusCode, string(body))

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err
	default:
		return backoff.Permanent(err)
	}
}
