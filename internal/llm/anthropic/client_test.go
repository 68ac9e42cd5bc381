package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cvlab/rankpipe/internal/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := New(Config{APIKey: "test-key", Model: "claude-3-5-sonnet-20240620", MaxTokens: 100}, zap.NewNop())
	client.baseURL = server.URL
	return client
}

func TestGenerateParsesMessagesResponse(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.Equal(t, APIVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, llm.SystemPrompt, req.System)
		require.Len(t, req.Messages, 1)

		json.NewEncoder(w).Encode(messagesResponse{
			Content:    []contentBlock{{Type: "text", Text: "hello "}, {Type: "text", Text: "world"}},
			StopReason: "end_turn",
			Usage:      usage{InputTokens: 10, OutputTokens: 4},
		})
	})

	resp, err := client.Generate(context.Background(), "say hi")
	require.NoError(t, err)
	require.Equal(t, "hello world", resp.Content)
	require.Equal(t, "end_turn", resp.FinishReason)
	require.Equal(t, int64(14), resp.Usage.TotalTokens)
}

func TestGenerateClassifiesQuotaErrorsRetryable(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"type": "rate_limit_error", "message": "quota exceeded"}}`))
	})

	_, err := client.Generate(context.Background(), "say hi")
	require.Error(t, err)
	require.True(t, llm.IsRetryable(err))

	var pe *llm.ProviderError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, llm.VendorAnthropic, pe.Provider)
	require.Contains(t, pe.Err.Error(), "quota exceeded")
}

func TestGenerateClassifiesAuthErrorsNonRetryable(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"type": "authentication_error", "message": "invalid x-api-key"}}`))
	})

	_, err := client.Generate(context.Background(), "say hi")
	require.Error(t, err)
	require.False(t, llm.IsRetryable(err))
}

func TestListModels(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models", r.URL.Path)
		w.Write([]byte(`{"data": [{"id": "claude-3-5-sonnet-20240620"}, {"id": "claude-3-haiku-20240307"}]}`))
	})

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"claude-3-5-sonnet-20240620", "claude-3-haiku-20240307"}, models)
}
