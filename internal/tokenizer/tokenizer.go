// Package tokenizer counts BPE tokens the way the completion models do.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is the GPT-3 encoding.
const DefaultEncoding = "r50k_base"

var loaderOnce sync.Once

// Counter counts tokens with a fixed encoding. Safe for concurrent use.
type Counter struct {
	encoding string
	enc      *tiktoken.Tiktoken
}

// New loads the named encoding from the embedded BPE ranks; no network access is made.
func New(encoding string) (*Counter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %q: %w", encoding, err)
	}
	return &Counter{encoding: encoding, enc: enc}, nil
}

// Count returns the number of tokens in text. Special token markers are counted as plain text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Encoding returns the encoding name.
func (c *Counter) Encoding() string {
	return c.encoding
}
