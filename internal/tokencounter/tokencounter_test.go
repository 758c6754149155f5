package tokencounter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountEmptyStringIsZero(t *testing.T) {
	c := New("gpt-4o-mini")
	assert.Equal(t, 0, c.Count(""))
}

func TestCountIsPositiveForNonEmptyText(t *testing.T) {
	c := New("gpt-4o-mini")
	assert.Greater(t, c.Count("hello, world!"), 0)
}

func TestCountGrowsWithLength(t *testing.T) {
	c := New("gpt-4o-mini")
	short := c.Count("hello")
	long := c.Count(strings.Repeat("hello world ", 50))
	assert.Greater(t, long, short)
}

func TestFallbackCountNeverZeroForNonEmptyText(t *testing.T) {
	assert.Equal(t, 1, fallbackCount("hi"))
	assert.Equal(t, 1, fallbackCount("abcd"))
	assert.Equal(t, 2, fallbackCount("abcdefgh"))
}

func TestCountUnknownModelFallsBack(t *testing.T) {
	c := New("not-a-real-model-xyz")
	n := c.Count("some text to estimate")
	assert.Greater(t, n, 0)
}
