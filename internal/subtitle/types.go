package subtitle

import "github.com/yairabf/submitter/internal/job"

// Segment aliases the shared domain type so this package's functions read
// naturally while every component keeps a single segment definition.
type Segment = job.SubtitleSegment

// Chunk is a contiguous slice of segments whose translation fits in one
// language-model call (spec.md §4.5, Glossary "Chunk").
type Chunk struct {
	Index    int
	Segments []Segment
}
