package inference

import (
	"log"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens with tiktoken, falling back to a character
// heuristic when the encoding cannot be loaded.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter loads the cl100k_base encoding. A counter without an
// encoding still works through the estimate fallback.
func NewTokenCounter() *TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.Printf("Failed to load tiktoken encoding, using estimation: %v", err)
		return &TokenCounter{}
	}
	return &TokenCounter{encoding: enc}
}

// Count returns the token count for text
func (tc *TokenCounter) Count(text string) int {
	if tc == nil || tc.encoding == nil {
		return EstimateTokens(text)
	}
	return len(tc.encoding.Encode(text, nil, nil))
}

// CountMessages returns the token count for a conversation, including the
// per-message format overhead.
func (tc *TokenCounter) CountMessages(messages []ChatMessage) int {
	// ~3 tokens of structure per message, plus 3 for the conversation frame
	tokensPerMessage := 3

	total := 3
	for _, msg := range messages {
		total += tokensPerMessage
		total += tc.Count(msg.Role)
		total += tc.Count(msg.Content)
	}
	return total
}

// EstimateTokens approximates the token count at one token per four
// characters, the typical ratio for English text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	estimate := len(text) / 4
	if estimate == 0 {
		estimate = 1
	}
	return estimate
}
