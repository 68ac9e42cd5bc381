package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cvlab/rankpipe/internal/llm"
)

func newTestClient(t *testing.T, model string, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"

	return &Client{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: 2000,
		logger:    zap.NewNop(),
	}
}

func completionBody(t *testing.T, content string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	require.NoError(t, err)
	return body
}

func TestGenerate(t *testing.T) {
	var gotRequest openai.ChatCompletionRequest
	client := newTestClient(t, "gpt-4o", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
		w.Header().Set("Content-Type", "application/json")
		w.Write(completionBody(t, `{"ranking": 3, "reasoning": "fine"}`))
	})

	resp, err := client.Generate(context.Background(), "rank this cv")
	require.NoError(t, err)

	assert.Equal(t, `{"ranking": 3, "reasoning": "fine"}`, resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, int64(15), resp.Usage.TotalTokens)

	require.Len(t, gotRequest.Messages, 2)
	assert.Equal(t, llm.SystemPrompt, gotRequest.Messages[0].Content)
	assert.Equal(t, "rank this cv", gotRequest.Messages[1].Content)
	assert.Equal(t, 2000, gotRequest.MaxTokens)
	assert.Zero(t, gotRequest.MaxCompletionTokens)
}

func TestGenerateGPT5UsesCompletionTokens(t *testing.T) {
	var gotRequest openai.ChatCompletionRequest
	client := newTestClient(t, "gpt-5-mini", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
		w.Header().Set("Content-Type", "application/json")
		w.Write(completionBody(t, "ok"))
	})

	_, err := client.Generate(context.Background(), "rank this cv")
	require.NoError(t, err)

	assert.Equal(t, 2000, gotRequest.MaxCompletionTokens)
	assert.Zero(t, gotRequest.MaxTokens)
}

func TestGenerateQuotaErrorIsRetryable(t *testing.T) {
	client := newTestClient(t, "gpt-4o", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limited", "type": "requests"}}`))
	})

	_, err := client.Generate(context.Background(), "rank this cv")
	require.Error(t, err)

	var provErr *llm.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.True(t, provErr.Retryable)
	assert.True(t, llm.IsRetryable(err))
}

func TestGenerateAuthErrorIsNotRetryable(t *testing.T) {
	client := newTestClient(t, "gpt-4o", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	})

	_, err := client.Generate(context.Background(), "rank this cv")
	require.Error(t, err)
	assert.False(t, llm.IsRetryable(err))
}

func TestListModels(t *testing.T) {
	client := newTestClient(t, "gpt-4o", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object": "list", "data": [{"id": "gpt-4o"}, {"id": "gpt-5-mini"}]}`))
	})

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o", "gpt-5-mini"}, models)
}
