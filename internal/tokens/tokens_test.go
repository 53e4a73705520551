package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounterFunc(t *testing.T) {
	c := CounterFunc(func(text, model string) int { return len(text) })
	assert.Equal(t, 5, c.Count("hello", "any-model"))
}

func TestTiktokenCounterUnknownModel(t *testing.T) {
	c := NewTiktokenCounter()

	// An unresolvable encoding must degrade to the sentinel, not error out.
	got := c.Count("some text", "definitely-not-a-model")
	assert.Equal(t, -1, got)

	// Repeated lookups behave the same.
	assert.Equal(t, -1, c.Count("other text", "definitely-not-a-model"))
}

func TestTiktokenCounterEmptyText(t *testing.T) {
	c := NewTiktokenCounter()
	got := c.Count("", "definitely-not-a-model")
	assert.Equal(t, -1, got)
}
