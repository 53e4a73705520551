package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter reports how many tokens a text occupies for a given model.
// Implementations must be safe for concurrent use.
type Counter interface {
	Count(text, model string) int
}

// CounterFunc adapts a plain function to the Counter interface.
type CounterFunc func(text, model string) int

func (f CounterFunc) Count(text, model string) int { return f(text, model) }

// TiktokenCounter counts tokens with tiktoken encodings, memoized per model.
// A counting failure degrades to -1 rather than blocking chunk production.
type TiktokenCounter struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
}

// NewTiktokenCounter returns a counter with an empty encoding cache.
func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{encodings: make(map[string]*tiktoken.Tiktoken)}
}

// Count returns the token count of text under the model's encoding, or -1
// when the encoding cannot be resolved.
func (c *TiktokenCounter) Count(text, model string) int {
	enc, err := c.encodingFor(model)
	if err != nil {
		return -1
	}
	return len(enc.Encode(text, nil, nil))
}

func (c *TiktokenCounter) encodingFor(model string) (*tiktoken.Tiktoken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encodings[model]; ok {
		return enc, nil
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, err
	}
	c.encodings[model] = enc
	return enc, nil
}
