package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVendorForPrefixHeuristic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model  string
		vendor string
	}{
		{"gemini-2.5-pro", VendorGemini},
		{"Gemini-1.5-Flash", VendorGemini},
		{"claude-3-5-sonnet-20240620", VendorAnthropic},
		{"gpt-4o-mini", VendorOpenAI},
		{"gpt-5-mini", VendorOpenAI},
		{"o3", VendorOpenAI},
	}

	for _, tt := range tests {
		require.Equal(t, tt.vendor, VendorFor(tt.model, nil), "model %s", tt.model)
	}
}

func TestVendorForExplicitRouteWins(t *testing.T) {
	t.Parallel()

	routes := map[string]string{"gemini-compatible-gateway": VendorOpenAI}
	require.Equal(t, VendorOpenAI, VendorFor("gemini-compatible-gateway", routes))
}

func TestUsageAddTolerantOfNil(t *testing.T) {
	t.Parallel()

	total := &Usage{}
	total.Add(&Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
	total.Add(nil)
	total.Add(&Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2})

	require.Equal(t, int64(11), total.PromptTokens)
	require.Equal(t, int64(6), total.CompletionTokens)
	require.Equal(t, int64(17), total.TotalTokens)
}
