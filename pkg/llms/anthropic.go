// Package llms provides LLM provider implementations of the llm.Client
// contract.
package llms

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	errs "github.com/XiaoConstantine/ace-go/pkg/errors"
	"github.com/XiaoConstantine/ace-go/pkg/logging"
)

// AnthropicClient implements llm.Client for Anthropic's models.
type AnthropicClient struct {
	client      *anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	temperature float64
}

// AnthropicOption configures an AnthropicClient.
type AnthropicOption func(*AnthropicClient)

// WithMaxTokens sets the completion token cap (default 4096).
func WithMaxTokens(n int64) AnthropicOption {
	return func(c *AnthropicClient) { c.maxTokens = n }
}

// WithTemperature sets the sampling temperature (default 0).
func WithTemperature(t float64) AnthropicOption {
	return func(c *AnthropicClient) { c.temperature = t }
}

// NewAnthropicClient creates an Anthropic-backed client. If apiKey is
// empty, ANTHROPIC_API_KEY is read from the environment.
func NewAnthropicClient(apiKey string, model anthropic.Model, opts ...AnthropicOption) (*AnthropicClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errs.New(errs.InvalidInput, "API key is required")
	}
	if !isValidAnthropicModel(string(model)) {
		return nil, errs.WithFields(
			errs.New(errs.InvalidInput, "unsupported Anthropic model"),
			errs.Fields{"model": string(model)})
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	c := &AnthropicClient{
		client:    &client,
		model:     model,
		maxTokens: 4096,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Generate implements llm.Client.
func (c *AnthropicClient) Generate(ctx context.Context, prompt string) (string, error) {
	logger := logging.GetLogger()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model: c.model,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			logger.Error(ctx, "Anthropic API error: status code %d", apiErr.StatusCode)
		}
		return "", errs.WithFields(
			errs.Wrap(err, errs.LLMGenerationFailed, "failed to generate response"),
			errs.Fields{"model": string(c.model)})
	}

	if message == nil || len(message.Content) == 0 {
		return "", errs.New(errs.LLMGenerationFailed, "received empty content from Anthropic API")
	}

	var responseText string
	if block := message.Content[0]; block.Type == "text" {
		responseText = block.Text
	}

	logger.Debug(ctx, "Anthropic response: %d prompt tokens, %d completion tokens",
		message.Usage.InputTokens, message.Usage.OutputTokens)

	return responseText, nil
}

// isValidAnthropicModel checks if the model is a valid Anthropic model.
func isValidAnthropicModel(model string) bool {
	validPrefixes := []string{
		"claude-3",
		"claude-4",
		"claude-haiku",
		"claude-sonnet",
		"claude-opus",
	}

	for _, prefix := range validPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}
