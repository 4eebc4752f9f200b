package tokenizer

import (
	"fmt"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Counter counts tokens with a Hugging Face tokenizer.json.
type Counter struct {
	t *tk.Tokenizer
}

// LoadCounter builds a Counter from a tokenizer.json file.
func LoadCounter(path string) (*Counter, error) {
	t, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}
	return &Counter{t: t}, nil
}

// CountTokens returns the encoded length of text without special tokens.
func (c *Counter) CountTokens(text string) (int, error) {
	enc, err := c.t.EncodeSingle(text, false)
	if err != nil {
		return 0, err
	}
	return len(enc.Ids), nil
}
