package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/FrenchMajesty/newsbench/internal/retry"
	"go.uber.org/zap"
)

const openaiBaseURL = "https://api.openai.com/v1"

var _ LanguageModelClient = (*OpenAIClient)(nil)

// NewClient creates a client for the public OpenAI API. Any field can be
// replaced afterwards, e.g. HTTPClient in tests.
func NewClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		APIKey:      apiKey,
		BaseURL:     openaiBaseURL,
		HTTPClient:  http.DefaultClient,
		RetryConfig: retry.DefaultConfig(),
		Logger:      zap.NewNop(),
	}
}

// ChatCompletion requests one chat completion
func (c *OpenAIClient) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	raw, err := c.post(ctx, "/chat/completions", req)
	if err != nil {
		return nil, err
	}

	resp := &ChatCompletionResponse{}
	if err := json.Unmarshal(raw, resp); err != nil {
		return nil, &ChatCompletionError{
			Message: fmt.Sprintf("failed to parse chat completion response: %v", err),
			RawBody: json.RawMessage(raw),
		}
	}
	return resp, nil
}

// SetBaseURL points the client at another OpenAI-compatible endpoint
func (c *OpenAIClient) SetBaseURL(baseURL string) {
	c.BaseURL = baseURL
}
