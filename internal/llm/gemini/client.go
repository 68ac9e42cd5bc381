package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/cvlab/rankpipe/internal/llm"
)

const defaultModel = "gemini-2.5-pro"

// generateContentAction marks models usable for text generation in the
// model listing.
const generateContentAction = "generateContent"

// Config holds the settings for a Gemini-backed provider.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// Client wraps the Google GenAI client behind the llm.Provider contract.
type Client struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	logger      *zap.Logger
}

var _ llm.Provider = (*Client)(nil)

// New creates a Gemini provider. The configured model name is resolved
// against the vendor's model listing: unknown names fall back to the first
// generate-capable model so that a stale config degrades with a warning
// instead of failing every call.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	c := &Client{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   int32(cfg.MaxTokens),
		logger:      logger,
	}
	c.resolveModel(ctx)

	return c, nil
}

// resolveModel checks the configured model against the API. Resolution is
// best effort: any listing failure keeps the configured name.
func (c *Client) resolveModel(ctx context.Context) {
	requested := strings.TrimPrefix(c.model, "models/")

	if _, err := c.client.Models.Get(ctx, requested, &genai.GetModelConfig{}); err == nil {
		c.model = requested
		return
	}

	available, err := ListGenerateModels(ctx, c.client)
	if err != nil || len(available) == 0 {
		c.logger.Warn("could not validate gemini model, keeping configured name",
			zap.String("model", requested),
			zap.Error(err),
		)
		return
	}

	for _, name := range available {
		if name == requested || strings.HasPrefix(name, requested) {
			c.model = name
			return
		}
	}

	c.logger.Warn("configured gemini model not found, falling back to first available",
		zap.String("requested", requested),
		zap.String("fallback", available[0]),
	)
	c.model = available[0]
}

// ListGenerateModels returns the names of models supporting content
// generation, with the "models/" prefix stripped.
func ListGenerateModels(ctx context.Context, client *genai.Client) ([]string, error) {
	page, err := client.Models.List(ctx, &genai.ListModelsConfig{})
	if err != nil {
		return nil, fmt.Errorf("list gemini models: %w", err)
	}

	names := make([]string, 0, len(page.Items))
	for _, model := range page.Items {
		if model == nil || !supportsGenerate(model) {
			continue
		}
		names = append(names, strings.TrimPrefix(model.Name, "models/"))
	}
	return names, nil
}

func supportsGenerate(model *genai.Model) bool {
	if len(model.SupportedActions) == 0 {
		return true
	}
	for _, action := range model.SupportedActions {
		if action == generateContentAction {
			return true
		}
	}
	return false
}

// Generate sends the prompt to Gemini and returns the joined textual parts
// of the first candidates along with token usage.
func (c *Client) Generate(ctx context.Context, prompt string) (*llm.Response, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, &llm.ProviderError{Provider: c.Name(), Op: "generate", Err: errors.New("prompt must not be empty")}
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(llm.SystemPrompt, genai.RoleUser),
	}
	if c.temperature > 0 {
		config.Temperature = genai.Ptr(c.temperature)
	}
	if c.maxTokens > 0 {
		config.MaxOutputTokens = c.maxTokens
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return nil, &llm.ProviderError{
			Provider:  c.Name(),
			Op:        "generate",
			Retryable: isRetryable(err),
			Err:       err,
		}
	}

	content := extractText(resp)
	if content == "" {
		return nil, &llm.ProviderError{
			Provider: c.Name(),
			Op:       "generate",
			Err:      errors.New("gemini api returned empty response"),
		}
	}

	return &llm.Response{
		Content:      content,
		Usage:        extractUsage(resp),
		FinishReason: extractFinishReason(resp),
	}, nil
}

func (c *Client) Name() string { return llm.VendorGemini }

func (c *Client) Model() string { return c.model }

// ListModels returns the generate-capable model names visible to the
// configured key.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	return ListGenerateModels(ctx, c.client)
}

func extractText(resp *genai.GenerateContentResponse) string {
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}
	return strings.TrimSpace(builder.String())
}

func extractUsage(resp *genai.GenerateContentResponse) *llm.Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return nil
	}
	return &llm.Usage{
		PromptTokens:     int64(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int64(resp.UsageMetadata.TotalTokenCount),
	}
}

func extractFinishReason(resp *genai.GenerateContentResponse) string {
	for _, candidate := range resp.Candidates {
		if candidate != nil && candidate.FinishReason != "" {
			return string(candidate.FinishReason)
		}
	}
	return ""
}

func isRetryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	return false
}
