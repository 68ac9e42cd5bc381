package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cvlab/rankpipe/internal/llm"
)

const (
	defaultModel = "claude-3-5-sonnet-20240620"

	// BaseURL is the Anthropic API endpoint.
	BaseURL = "https://api.anthropic.com/v1"

	// APIVersion is the required Anthropic API version header.
	APIVersion = "2023-06-01"
)

// Config holds Anthropic client configuration.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// Client implements llm.Provider against the Anthropic Messages API. There
// is no official Go SDK, so the wire types are declared here.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float32
	maxTokens   int
	httpClient  *http.Client
	logger      *zap.Logger
}

var _ llm.Provider = (*Client)(nil)

// New creates an Anthropic API client.
func New(cfg Config, logger *zap.Logger) *Client {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	return &Client{
		apiKey:      strings.TrimSpace(cfg.APIKey),
		baseURL:     BaseURL,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		logger:      logger,
	}
}

// messagesRequest is a request to the Messages API.
type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []message `json:"messages"`
	System      string    `json:"system,omitempty"`
	Temperature float32   `json:"temperature,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the response from the Messages API.
type messagesResponse struct {
	ID         string         `json:"id"`
	Content    []contentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends the prompt to the Messages API and joins the returned text
// blocks.
func (c *Client) Generate(ctx context.Context, prompt string) (*llm.Response, error) {
	reqBody := messagesRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      llm.SystemPrompt,
		Temperature: c.temperature,
		Messages:    []message{{Role: "user", Content: prompt}},
	}

	var resp messagesResponse
	if err := c.post(ctx, "/messages", reqBody, &resp); err != nil {
		return nil, err
	}

	var builder strings.Builder
	for _, block := range resp.Content {
		if block.Type != "" && block.Type != "text" {
			continue
		}
		builder.WriteString(block.Text)
	}

	content := strings.TrimSpace(builder.String())
	if content == "" {
		return nil, &llm.ProviderError{
			Provider: c.Name(),
			Op:       "generate",
			Err:      errors.New("anthropic api returned empty response"),
		}
	}

	return &llm.Response{
		Content: content,
		Usage: &llm.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		FinishReason: resp.StopReason,
	}, nil
}

func (c *Client) Name() string { return llm.VendorAnthropic }

func (c *Client) Model() string { return c.model }

// ListModels returns the model identifiers visible to the configured key.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &llm.ProviderError{Provider: c.Name(), Op: "list models", Retryable: isNetworkError(err), Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &llm.ProviderError{Provider: c.Name(), Op: "list models", Retryable: true, Err: err}
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, c.statusError("list models", httpResp.StatusCode, body)
	}

	var listing struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, &llm.ProviderError{Provider: c.Name(), Op: "list models", Err: err}
	}

	names := make([]string, 0, len(listing.Data))
	for _, model := range listing.Data {
		names = append(names, model.ID)
	}
	return names, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return &llm.ProviderError{Provider: c.Name(), Op: "generate", Retryable: isNetworkError(err), Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return &llm.ProviderError{Provider: c.Name(), Op: "generate", Retryable: true, Err: err}
	}

	if httpResp.StatusCode != http.StatusOK {
		return c.statusError("generate", httpResp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &llm.ProviderError{Provider: c.Name(), Op: "generate", Err: fmt.Errorf("decode anthropic response: %w", err)}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", APIVersion)
}

func (c *Client) statusError(op string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		msg = parsed.Error.Message
	}

	return &llm.ProviderError{
		Provider:  c.Name(),
		Op:        op,
		Retryable: retryableStatus(status),
		Err:       fmt.Errorf("anthropic api status %d: %s", status, msg),
	}
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

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
