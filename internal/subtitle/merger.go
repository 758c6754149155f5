package subtitle

import (
	"sort"

	"github.com/yairabf/submitter/internal/retry"
)

// MergeTranslations merges a translated chunk's text blocks back into the
// chunk's original segments (spec.md §4.5).
//
//   - Exactly matched counts: pairwise zip, original segment number and
//     timing preserved, text replaced.
//   - Missing exactly one: parsedNumbers lists the 1-based positions
//     within the chunk that the response carried; the segment at the
//     single absent position keeps its original text.
//   - Any other mismatch: retry.ErrTranslationCountMismatch (transient).
func MergeTranslations(originals []Segment, translations []string, parsedNumbers []int) ([]Segment, error) {
	if len(translations) == len(originals) {
		merged := make([]Segment, len(originals))
		for i, o := range originals {
			merged[i] = Segment{Number: o.Number, Start: o.Start, End: o.End, Text: translations[i]}
		}
		return merged, nil
	}

	if len(translations) == len(originals)-1 && parsedNumbers != nil {
		present := make(map[int]bool, len(parsedNumbers))
		for _, n := range parsedNumbers {
			present[n] = true
		}
		merged := make([]Segment, 0, len(originals))
		ti := 0
		for i, o := range originals {
			if present[i+1] {
				merged = append(merged, Segment{Number: o.Number, Start: o.Start, End: o.End, Text: translations[ti]})
				ti++
			} else {
				merged = append(merged, o)
			}
		}
		return merged, nil
	}

	return nil, retry.ErrTranslationCountMismatch
}

// MergeChunks re-sorts translated chunks by original segment index and
// renumbers the result densely from 1 (spec.md §4.5).
func MergeChunks(chunks []Chunk) []Segment {
	var all []Segment
	for _, c := range chunks {
		all = append(all, c.Segments...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Number < all[j].Number
	})
	for i := range all {
		all[i].Number = i + 1
	}
	return all
}
