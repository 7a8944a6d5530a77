package adapters

import (
	"context"
	"fmt"
	"strings"

	"github.com/FrenchMajesty/newsbench/adapters/openai"
)

// ChoiceLLMClient asks a chat model to pick one label out of a fixed list
type ChoiceLLMClient struct {
	client      openai.LanguageModelClient
	model       string
	temperature *float32
}

const defaultModel = "gpt-4.1-mini"

const choiceSystemPrompt = `You are a zero-shot text classification assistant. You will be given a text and a numbered list of candidate labels.

Rules:
- Answer with exactly one of the candidate labels, copied verbatim
- Return ONLY the label, nothing else
- Never invent a label that is not in the list`

// NewChoiceLLMClient creates an LLM client backed by the OpenAI-compatible API
func NewChoiceLLMClient(apiKey *string, model string, baseUrl string, temperature *float32) (*ChoiceLLMClient, error) {
	key, err := loadEnvVar(apiKey, "OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}

	client := openai.NewClient(*key)
	if baseUrl != "" {
		client.SetBaseURL(baseUrl)
	}

	return newChoiceLLMClient(client, model, temperature), nil
}

func newChoiceLLMClient(client openai.LanguageModelClient, model string, temperature *float32) *ChoiceLLMClient {
	if model == "" {
		model = defaultModel
	}
	return &ChoiceLLMClient{
		client:      client,
		model:       model,
		temperature: temperature,
	}
}

// Choose returns the model's pick among candidates. The reply is returned
// trimmed; matching it against the candidates is the caller's job.
func (c *ChoiceLLMClient) Choose(ctx context.Context, text string, candidates []string) (string, error) {
	systemPrompt := choiceSystemPrompt
	userPrompt := buildChoicePrompt(text, candidates)

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatMessage{
			{Role: openai.MessageRoleSystem, Content: &systemPrompt},
			{Role: openai.MessageRoleUser, Content: &userPrompt},
		},
		MaxCompletionTokens: 20,
		Temperature:         c.temperature,
	}

	resp, err := c.client.ChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to get LLM response: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return "", fmt.Errorf("no response from LLM")
	}

	return strings.TrimSpace(*resp.Choices[0].Message.Content), nil
}

func buildChoicePrompt(text string, candidates []string) string {
	var b strings.Builder
	b.WriteString("Candidate labels:\n")
	for i, candidate := range candidates {
		fmt.Fprintf(&b, "%d. %s\n", i+1, candidate)
	}
	b.WriteString("\nText:\n")
	b.WriteString(text)
	return b.String()
}
