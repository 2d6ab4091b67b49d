// Package diff renders line-oriented diffs of file contents rewritten by
// upgrade operations.
package diff

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// MaxLines bounds the rendered output; longer diffs are cut with a marker.
const MaxLines = 2000

const truncatedMarker = "... (diff truncated) ..."

// Stats counts changed lines.
type Stats struct {
	Added   int
	Removed int
}

// Changed reports whether any line differs.
func (s Stats) Changed() bool {
	return s.Added > 0 || s.Removed > 0
}

// Lines diffs before and after line by line and returns the rendered diff
// with its stats. Identical inputs produce an empty string.
func Lines(before, after []byte, label string) (string, Stats) {
	if bytes.Equal(before, after) {
		return "", Stats{}
	}

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(string(before), string(after))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var buf strings.Builder
	var stats Stats
	fmt.Fprintf(&buf, "--- %s\n+++ %s\n", label, label)

	written := 2
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}

		for _, line := range splitLines(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				stats.Added++
			case diffmatchpatch.DiffDelete:
				stats.Removed++
			}
			if written < MaxLines {
				buf.WriteString(prefix)
				buf.WriteString(line)
				buf.WriteByte('\n')
			} else if written == MaxLines {
				buf.WriteString(truncatedMarker)
				buf.WriteByte('\n')
			}
			written++
		}
	}

	return buf.String(), stats
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
