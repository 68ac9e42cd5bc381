package openai

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cvlab/rankpipe/internal/llm"
)

const defaultModel = "gpt-4o-mini"

// Config holds the settings for an OpenAI-backed provider.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// Client implements llm.Provider against the OpenAI chat completion API.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

var _ llm.Provider = (*Client)(nil)

// New creates an OpenAI provider.
func New(cfg Config, logger *zap.Logger) *Client {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	return &Client{
		client:      openai.NewClient(strings.TrimSpace(cfg.APIKey)),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

// Generate sends the prompt as a chat completion and returns the first
// choice.
func (c *Client) Generate(ctx context.Context, prompt string) (*llm.Response, error) {
	request := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: llm.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	// The gpt-5 family rejects the legacy max_tokens parameter.
	if c.maxTokens > 0 {
		if strings.HasPrefix(c.model, "gpt-5") {
			request.MaxCompletionTokens = c.maxTokens
		} else {
			request.MaxTokens = c.maxTokens
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return nil, &llm.ProviderError{
			Provider:  c.Name(),
			Op:        "generate",
			Retryable: isRetryable(err),
			Err:       err,
		}
	}

	if len(resp.Choices) == 0 {
		return nil, &llm.ProviderError{
			Provider: c.Name(),
			Op:       "generate",
			Err:      errors.New("no choices returned from openai"),
		}
	}

	choice := resp.Choices[0]
	return &llm.Response{
		Content: strings.TrimSpace(choice.Message.Content),
		Usage: &llm.Usage{
			PromptTokens:     int64(resp.Usage.PromptTokens),
			CompletionTokens: int64(resp.Usage.CompletionTokens),
			TotalTokens:      int64(resp.Usage.TotalTokens),
		},
		FinishReason: string(choice.FinishReason),
	}, nil
}

func (c *Client) Name() string { return llm.VendorOpenAI }

func (c *Client) Model() string { return c.model }

// ListModels returns the model identifiers visible to the configured key.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	list, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, &llm.ProviderError{
			Provider:  c.Name(),
			Op:        "list models",
			Retryable: isRetryable(err),
			Err:       err,
		}
	}

	names := make([]string, 0, len(list.Models))
	for _, model := range list.Models {
		names = append(names, model.ID)
	}
	return names, nil
}

func isRetryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	return false
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
