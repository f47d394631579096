package tokens

import (
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts model tokens for logging and turn accounting.
type Counter struct {
	codec tokenizer.Codec
}

// New returns a Counter for model, falling back to cl100k_base when the
// tokenizer does not know the model.
func New(model string) (*Counter, error) {
	if m := strings.TrimSpace(model); m != "" {
		if codec, err := tokenizer.ForModel(tokenizer.Model(m)); err == nil {
			return &Counter{codec: codec}, nil
		}
	}
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("tokens: load cl100k_base: %w", err)
	}
	return &Counter{codec: codec}, nil
}

// Count returns the number of tokens in text, or 0 if it cannot be encoded.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return 0
	}
	return len(ids)
}
