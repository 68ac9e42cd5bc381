package llm

import "strings"

// Vendor names used in routing and result labeling.
const (
	VendorGemini    = "gemini"
	VendorAnthropic = "anthropic"
	VendorOpenAI    = "openai"
)

// VendorFor resolves the vendor responsible for a model name: an explicit
// route wins, then the name-prefix heuristic (gemini* and claude* have
// dedicated vendors, everything else goes to openai).
func VendorFor(model string, routes map[string]string) string {
	model = strings.TrimSpace(strings.ToLower(model))
	if vendor, ok := routes[model]; ok {
		return strings.TrimSpace(strings.ToLower(vendor))
	}
	switch {
	case strings.HasPrefix(model, "gemini"):
		return VendorGemini
	case strings.HasPrefix(model, "claude"):
		return VendorAnthropic
	default:
		return VendorOpenAI
	}
}
