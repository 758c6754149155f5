package subtitle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairabf/submitter/internal/retry"
)

func seg(n int, text string) Segment {
	return Segment{Number: n, Start: time.Duration(n) * time.Second, End: time.Duration(n+1) * time.Second, Text: text}
}

func TestMergeTranslationsExactMatch(t *testing.T) {
	originals := []Segment{seg(1, "one"), seg(2, "two"), seg(3, "three")}
	translations := []string{"uno", "dos", "tres"}

	merged, err := MergeTranslations(originals, translations, nil)
	require.NoError(t, err)
	require.Len(t, merged, 3)
	assert.Equal(t, "uno", merged[0].Text)
	assert.Equal(t, "dos", merged[1].Text)
	assert.Equal(t, "tres", merged[2].Text)
	assert.Equal(t, 2, merged[1].Number)
}

func TestMergeTranslationsMissingByOneSubstitutesOriginal(t *testing.T) {
	originals := []Segment{seg(1, "one"), seg(2, "two"), seg(3, "three"), seg(4, "four"), seg(5, "five")}
	translations := []string{"uno", "dos", "tres", "cinco"}
	parsedNumbers := []int{1, 2, 3, 5}

	merged, err := MergeTranslations(originals, translations, parsedNumbers)
	require.NoError(t, err)
	require.Len(t, merged, 5)
	assert.Equal(t, "four", merged[3].Text, "missing segment 4 should fall back to original text")
	assert.Equal(t, "cinco", merged[4].Text)
}

func TestMergeTranslationsLargerMismatchIsTransientError(t *testing.T) {
	originals := []Segment{seg(1, "one"), seg(2, "two"), seg(3, "three"), seg(4, "four"), seg(5, "five")}
	translations := []string{"uno", "dos"}

	_, err := MergeTranslations(originals, translations, []int{1, 2})
	require.ErrorIs(t, err, retry.ErrTranslationCountMismatch)
	assert.True(t, retry.IsTransient(err))
}

func TestMergeChunksRenumbersDenselyInOriginalOrder(t *testing.T) {
	chunks := []Chunk{
		{Index: 1, Segments: []Segment{seg(6, "f"), seg(7, "g")}},
		{Index: 0, Segments: []Segment{seg(1, "a"), seg(2, "b"), seg(3, "c")}},
	}
	merged := MergeChunks(chunks)
	require.Len(t, merged, 5)
	for i, s := range merged {
		assert.Equal(t, i+1, s.Number)
	}
	assert.Equal(t, "a", merged[0].Text)
	assert.Equal(t, "g", merged[4].Text)
}
