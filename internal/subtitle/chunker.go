package subtitle

import "log/slog"

// TokenCounter estimates the token cost of a string for a given model,
// satisfied by internal/tokencounter.Counter.
type TokenCounter interface {
	Count(text string) int
}

// Split produces chunks satisfying the invariants of spec.md §4.5:
//   - sum of token counts in a chunk <= maxTokens*safetyMargin, unless a
//     single segment alone exceeds the budget, in which case it forms its
//     own (oversized) chunk with a warning.
//   - len(chunk) <= maxSegmentsPerChunk.
//   - segment order within a chunk matches input order.
//   - no segment is split across chunks.
func Split(segments []Segment, counter TokenCounter, maxTokens int, safetyMargin float64, maxSegmentsPerChunk int) []Chunk {
	budget := float64(maxTokens) * safetyMargin

	var chunks []Chunk
	var current []Segment
	var currentTokens float64

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Segments: current})
		current = nil
		currentTokens = 0
	}

	for _, seg := range segments {
		tokens := float64(counter.Count(seg.Text))

		if tokens > budget {
			flush()
			slog.Warn("subtitle: segment exceeds chunk token budget alone, isolating it",
				"segment_number", seg.Number, "tokens", tokens, "budget", budget)
			chunks = append(chunks, Chunk{Index: len(chunks), Segments: []Segment{seg}})
			continue
		}

		if len(current) > 0 && (currentTokens+tokens > budget || len(current)+1 > maxSegmentsPerChunk) {
			flush()
		}

		current = append(current, seg)
		currentTokens += tokens
	}
	flush()

	return chunks
}
