package models

// DecodingOptions selects sampled or greedy decoding and the token budget.
type DecodingOptions struct {
	Sample      bool
	Temperature float64
	TopP        float64
	MaxTokens   int
	Stop        []string
}

// SampledDecoding is used for normal generation.
func SampledDecoding() DecodingOptions {
	return DecodingOptions{Sample: true, Temperature: 0.7, TopP: 0.9, MaxTokens: 100}
}

// GreedyDecoding always picks the most likely token.
func GreedyDecoding(maxTokens int) DecodingOptions {
	return DecodingOptions{MaxTokens: maxTokens}
}
