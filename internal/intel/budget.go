package intel

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Budget bounds manual-analysis input by model token count so oversized
// transcripts are truncated before they reach the backend.
type Budget struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
}

// NewBudget creates a token budget for the given model. maxTokens <= 0
// disables truncation.
func NewBudget(model string, maxTokens int) (*Budget, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Budget{tokenizer: enc, maxTokens: maxTokens}, nil
}

// Count returns the token count for text.
func (b *Budget) Count(text string) int {
	return len(b.tokenizer.Encode(text, nil, nil))
}

// Truncate cuts text down to the budget, reporting whether anything
// was dropped. The cut lands on a token boundary, not a rune count.
func (b *Budget) Truncate(text string) (string, bool) {
	if b.maxTokens <= 0 {
		return text, false
	}
	tokens := b.tokenizer.Encode(text, nil, nil)
	if len(tokens) <= b.maxTokens {
		return text, false
	}
	return b.tokenizer.Decode(tokens[:b.maxTokens]), true
}
