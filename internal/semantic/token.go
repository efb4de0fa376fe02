package semantic

import "strings"

// EstimateTokens gives a rough token count for metrics when the agent
// response carries no usage metadata. Exact tokenization is not required.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	// Count words as a better proxy than pure character division.
	words := len(strings.Fields(text))
	// Roughly 1.33 tokens per word for English text.
	tokens := int(float64(words) * 1.33)
	if tokens < 1 && len(text) > 0 {
		tokens = 1
	}
	return tokens
}
