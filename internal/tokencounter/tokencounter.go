// Package tokencounter estimates the token cost of text for a given LLM
// model, used by the translation chunker to stay under the model's
// context budget (spec.md §4.5, §4.6).
//
// Grounded on the tiktoken-go usage pattern carried by
// other_examples/manifests/fairyhunter13-ai-cv-evaluator's go.mod
// (github.com/pkoukk/tiktoken-go + tiktoken-go-loader), which bundles
// the BPE rank files so the encoder never needs network access at
// runtime.
package tokencounter

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Counter estimates token counts for a fixed model, caching the BPE
// encoder across calls since constructing one is not free.
type Counter struct {
	model string

	mu      sync.Mutex
	encoder *tiktoken.Tiktoken
}

// New returns a Counter for the given model name (e.g. "gpt-4o-mini").
func New(model string) *Counter {
	return &Counter{model: model}
}

// Count returns the estimated token count of text. If the model's
// encoding cannot be resolved, it falls back to a length-based estimate
// of max(1, len(text)/4) so callers always get a usable (if approximate)
// bound rather than an error (spec.md §4.6).
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	enc := c.encoderFor()
	if enc == nil {
		return fallbackCount(text)
	}
	return len(enc.Encode(text, nil, nil))
}

func (c *Counter) encoderFor() *tiktoken.Tiktoken {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.encoder != nil {
		return c.encoder
	}
	enc, err := tiktoken.EncodingForModel(c.model)
	if err != nil {
		return nil
	}
	c.encoder = enc
	return enc
}

func fallbackCount(text string) int {
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}
