package subtitle

import (
	"fmt"
	"strings"
	"time"
)

// Format renders segments back to the textual subtitle format: entries
// joined by a single blank line, file terminated by exactly one newline.
func Format(segments []Segment) string {
	blocks := make([]string, 0, len(segments))
	for _, s := range segments {
		blocks = append(blocks, formatBlock(s))
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

func formatBlock(s Segment) string {
	return fmt.Sprintf("%d\n%s --> %s\n%s",
		s.Number, formatTimestamp(s.Start), formatTimestamp(s.End), s.Text)
}

func formatTimestamp(d time.Duration) string {
	total := int64(d / time.Millisecond)
	ms := total % 1000
	total /= 1000
	secs := total % 60
	total /= 60
	mins := total % 60
	hours := total / 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, mins, secs, ms)
}
