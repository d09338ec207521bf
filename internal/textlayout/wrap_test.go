package textlayout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/image/font/basicfont"
)

// basicfont.Face7x13 advances every glyph by exactly 7 pixels.
var face = basicfont.Face7x13

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxWidth int
		want     []string
	}{
		{"empty text reserves one line", "", 100, []string{""}},
		{"whitespace only", "   ", 100, []string{""}},
		{"fits on one line", "Cotton Towel", 100, []string{"Cotton Towel"}},
		{"exact fit is kept", "abc def", 49, []string{"abc def"}},
		{"one pixel short wraps", "abc def", 48, []string{"abc", "def"}},
		{"greedy wrapping", "aa bb cc dd", 35, []string{"aa bb", "cc dd"}},
		{"long word alone on its line", "a verylongword b", 35, []string{"a", "verylongword", "b"}},
		{"newline is a hard break", "aa\nbb", 1000, []string{"aa", "bb"}},
		{"blank paragraphs vanish", "aa\n\nbb", 1000, []string{"aa", "bb"}},
		{"crlf treated as newline", "aa\r\nbb", 1000, []string{"aa", "bb"}},
		{"runs of spaces collapse", "aa    bb", 1000, []string{"aa bb"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Wrap(tt.text, face, tt.maxWidth))
		})
	}
}

func TestWrapNeverCrossesParagraphs(t *testing.T) {
	text := "first paragraph words\nsecond paragraph words\nthird"
	lines := Wrap(text, face, 70)

	paragraphs := strings.Split(text, "\n")
	for _, line := range lines {
		inside := false
		for _, p := range paragraphs {
			if strings.Contains(p, line) {
				inside = true
				break
			}
		}
		assert.Truef(t, inside, "line %q spans a paragraph break", line)
	}
}

func TestWrapRespectsBudget(t *testing.T) {
	text := "Trisa Exports Pvt. Ltd. E-2, Shree Arihant Compound, Ground Floor"
	for _, line := range Wrap(text, face, 140) {
		if strings.Contains(line, " ") {
			assert.LessOrEqual(t, Measure(face, line), 140, line)
		}
	}
}

func TestMeasure(t *testing.T) {
	assert.Equal(t, 0, Measure(face, ""))
	assert.Equal(t, 21, Measure(face, "abc"))
}
