package subtitle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	perWord int
}

func (f fakeCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}

func makeSegments(n int, textLen int) []Segment {
	segs := make([]Segment, n)
	text := make([]byte, textLen)
	for i := range text {
		text[i] = 'a'
	}
	for i := 0; i < n; i++ {
		segs[i] = Segment{Number: i + 1, Start: time.Duration(i) * time.Second, End: time.Duration(i+1) * time.Second, Text: string(text)}
	}
	return segs
}

func flattenChunks(chunks []Chunk) []Segment {
	var out []Segment
	for _, c := range chunks {
		out = append(out, c.Segments...)
	}
	return out
}

func TestSplitConcatEqualsInput(t *testing.T) {
	segs := makeSegments(20, 8)
	chunks := Split(segs, fakeCounter{}, 100, 0.8, 100)
	flat := flattenChunks(chunks)
	require.Len(t, flat, len(segs))
	for i := range segs {
		assert.Equal(t, segs[i], flat[i])
	}
}

func TestSplitRespectsMaxSegmentsPerChunk(t *testing.T) {
	segs := makeSegments(25, 1)
	chunks := Split(segs, fakeCounter{}, 100000, 1.0, 10)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Segments), 10)
	}
}

func TestSplitRespectsTokenBudget(t *testing.T) {
	segs := makeSegments(10, 40) // ~10 tokens each
	chunks := Split(segs, fakeCounter{}, 25, 1.0, 1000)
	for _, c := range chunks {
		total := 0
		for _, s := range c.Segments {
			total += fakeCounter{}.Count(s.Text)
		}
		if len(c.Segments) > 1 {
			assert.LessOrEqual(t, total, 25)
		}
	}
}

func TestSplitOversizedSingleSegmentFormsOwnChunk(t *testing.T) {
	segs := makeSegments(3, 4)
	segs[1].Text = string(make([]byte, 400)) // far exceeds budget alone
	for i := range segs[1].Text {
		_ = i
	}
	chunks := Split(segs, fakeCounter{}, 10, 1.0, 1000)
	found := false
	for _, c := range chunks {
		if len(c.Segments) == 1 && c.Segments[0].Number == 2 {
			found = true
		}
	}
	assert.True(t, found, "oversized segment should form its own chunk")
}

func TestSplitPreservesOrder(t *testing.T) {
	segs := makeSegments(15, 8)
	chunks := Split(segs, fakeCounter{}, 50, 0.8, 5)
	flat := flattenChunks(chunks)
	for i := 1; i < len(flat); i++ {
		assert.Less(t, flat[i-1].Number, flat[i].Number)
	}
}
