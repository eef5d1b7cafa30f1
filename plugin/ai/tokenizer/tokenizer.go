// Package tokenizer counts prompt tokens for budget calculations.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is the encoding used by the chat models we target.
const DefaultEncoding = "cl100k_base"

// Tokenizer counts tokens in text. Implementations must be deterministic.
type Tokenizer interface {
	Count(text string) int
}

// Func adapts a plain function to Tokenizer.
type Func func(text string) int

// Count implements Tokenizer.
func (f Func) Count(text string) int {
	return f(text)
}

// TikToken counts tokens with a BPE encoding.
type TikToken struct {
	enc *tiktoken.Tiktoken
}

var loaderOnce sync.Once

// NewTikToken loads the named encoding. BPE ranks are read from the bundled
// offline loader so no network access is needed.
func NewTikToken(encoding string) (*TikToken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %s: %w", encoding, err)
	}
	return &TikToken{enc: enc}, nil
}

// Count implements Tokenizer.
func (t *TikToken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// New returns the default tokenizer, falling back to the estimator when the
// encoding cannot be loaded.
func New() Tokenizer {
	tok, err := NewTikToken(DefaultEncoding)
	if err != nil {
		return Estimator{}
	}
	return tok
}

var (
	_ Tokenizer = (*TikToken)(nil)
	_ Tokenizer = Estimator{}
	_ Tokenizer = Func(nil)
)
