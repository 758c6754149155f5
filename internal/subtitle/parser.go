// Package subtitle is a pure module: it parses and formats the SRT-like
// subtitle text format, splits a segment list into token-budget-aware
// chunks, and merges translated chunks back into a dense segment list
// (spec.md §4.5).
//
// Grounded on the teacher's preference for small, dependency-free pure
// functions in pkg/config (e.g. envexpand.go) — this package uses only
// the standard library, since no example repo carries a dedicated SRT
// parsing library and the format is simple enough that stdlib text
// scanning is the idiomatic choice (see DESIGN.md).
package subtitle

import (
	"bufio"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

const timestampLayout = "15:04:05,000"

// Parse reads the textual subtitle format into an ordered segment list.
// It tolerates a leading UTF-8 byte-order mark and skips malformed
// blocks (logging a warning) rather than failing the whole parse.
func Parse(content string) []Segment {
	content = strings.TrimPrefix(content, "﻿")
	lines := splitLines(content)

	var segments []Segment
	i := 0
	for i < len(lines) {
		for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
			i++
		}
		if i >= len(lines) {
			break
		}

		indexLine := strings.TrimSpace(lines[i])
		idx, err := strconv.Atoi(indexLine)
		if err != nil {
			slog.Warn("subtitle: malformed index line, skipping block", "line", indexLine)
			i = skipToNextBlank(lines, i)
			continue
		}
		i++

		if i >= len(lines) {
			break
		}
		start, end, err := parseTimestampLine(lines[i])
		if err != nil {
			slog.Warn("subtitle: malformed timestamp line, skipping block", "line", lines[i])
			i = skipToNextBlank(lines, i)
			continue
		}
		i++

		var textLines []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			textLines = append(textLines, lines[i])
			i++
		}

		segments = append(segments, Segment{
			Number: idx,
			Start:  start,
			End:    end,
			Text:   strings.Join(textLines, "\n"),
		})
	}
	return segments
}

// skipToNextBlank advances past the current malformed block to the next
// blank line (or end of input), so parsing can recover and continue.
func skipToNextBlank(lines []string, i int) int {
	for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
		i++
	}
	return i
}

func parseTimestampLine(line string) (time.Duration, time.Duration, error) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("subtitle: invalid timestamp line %q", line)
	}
	start, err := parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTimestamp(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseTimestamp(s string) (time.Duration, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return 0, fmt.Errorf("subtitle: invalid timestamp %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond()), nil
}

func splitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}
