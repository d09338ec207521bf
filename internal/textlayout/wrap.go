// Package textlayout wraps label text to a pixel budget using exact font
// metrics.
package textlayout

import (
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Wrap splits text into lines that fit maxWidth pixels when drawn with face.
//
// Explicit newlines are hard boundaries. Inside each paragraph words are added
// greedily while the measured candidate line stays within maxWidth; a word that
// is wider than maxWidth on its own still gets a line of its own. Empty text
// yields a single empty line so callers always reserve one row.
func Wrap(text string, face font.Face, maxWidth int) []string {
	if text == "" {
		return []string{""}
	}
	limit := fixed.I(maxWidth)

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current []string
		for _, word := range strings.Fields(paragraph) {
			if len(current) == 0 {
				current = append(current, word)
				continue
			}
			candidate := strings.Join(current, " ") + " " + word
			if font.MeasureString(face, candidate) <= limit {
				current = append(current, word)
				continue
			}
			lines = append(lines, strings.Join(current, " "))
			current = []string{word}
		}
		if len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

// Measure returns the advance width of s in whole pixels, rounded up.
func Measure(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}
