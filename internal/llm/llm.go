package llm

import (
	"context"
	"errors"
	"fmt"
)

// SystemPrompt is sent to every vendor through its native system-message
// channel so that pipelines never have to restate the analyst persona.
const SystemPrompt = "You are an expert CV analyst with deep knowledge of recruitment and talent assessment."

// Usage accounts tokens consumed by a single completion call.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Add accumulates another usage record, tolerating nil on either side.
func (u *Usage) Add(other *Usage) {
	if u == nil || other == nil {
		return
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Response is the result of a single completion call.
type Response struct {
	Content      string
	Usage        *Usage
	FinishReason string
}

// Provider generates text completions for prompts. Implementations are
// interchangeable: callers may only branch on Name for labeling.
type Provider interface {
	Generate(ctx context.Context, prompt string) (*Response, error)
	Name() string
	Model() string
}

// ProviderError wraps vendor failures (auth, quota, network) with a
// retryable classification so callers can apply a retry policy without
// inspecting vendor-specific error types.
type ProviderError struct {
	Provider  string
	Op        string
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a provider error worth retrying.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}
