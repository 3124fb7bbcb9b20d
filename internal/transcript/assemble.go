// Package transcript assembles recognized speech segments into deliverable text.
package transcript

import "strings"

// Options controls transcript assembly formatting behavior.
type Options struct {
	TrailingSpace bool
}

// Assemble concatenates segment texts in emission order and trims the result.
//
// Segment texts carry their own leading spacing, so no separator is inserted.
func Assemble(segments []string, opts Options) string {
	if len(segments) == 0 {
		return ""
	}

	text := strings.TrimSpace(strings.Join(segments, ""))
	if text == "" {
		return ""
	}

	if opts.TrailingSpace {
		return text + " "
	}
	return text
}
