package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/FrenchMajesty/newsbench/internal/retry"
	"go.uber.org/zap"
)

// isRetryable reports whether an attempt failed transiently: a transport
// error before any response, a rate limit, or a server error.
func isRetryable(err error, statusCode int, _ []byte) bool {
	if statusCode != 0 {
		return statusCode == http.StatusTooManyRequests || statusCode >= 500
	}
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var urlErr *url.Error
	var netErr net.Error
	return errors.As(err, &urlErr) || errors.As(err, &netErr)
}

// post sends payload as JSON to path, retrying transient failures, and
// returns the body of the 200 response.
func (c *OpenAIClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request for %s: %w", path, err)
	}
	endpoint := c.BaseURL + path

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := retry.Options{
		Config:       c.RetryConfig,
		ErrorChecker: isRetryable,
		Logger:       logger.Sugar().Infof,
		APIName:      "OpenAI " + path,
	}

	return retry.Execute(ctx, opts, func(int) ([]byte, int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, 0, nil, fmt.Errorf("failed to create request for %s: %w", path, err)
		}
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return nil, 0, nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, resp.StatusCode, nil, fmt.Errorf("failed to read response from %s: %w", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, resp.StatusCode, respBody, &ChatCompletionError{
				Message:    fmt.Sprintf("openai %s returned %d", path, resp.StatusCode),
				StatusCode: resp.StatusCode,
				RawBody:    json.RawMessage(respBody),
			}
		}
		return respBody, resp.StatusCode, respBody, nil
	})
}
