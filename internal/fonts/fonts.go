// Package fonts loads the label typefaces. When the configured face files are
// missing or unreadable it falls back to the Go fonts compiled into the binary,
// so rendering never fails because of a font.
package fonts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Face file names looked up (case-insensitively) in the font directory.
const (
	RegularFile = "MYRIADPRO-REGULAR.OTF"
	BoldFile    = "MYRIADPRO-BOLD.OTF"
)

// CaptionScale enlarges the bottom caption relative to body text.
const CaptionScale = 1.2

// Set is the group of faces a label is drawn with.
type Set struct {
	Regular font.Face
	Bold    font.Face
	Caption font.Face
	// Size is the body pixel size; CaptionSize the caption pixel size.
	Size        int
	CaptionSize int
	// Builtin is true when the fallback Go fonts are in use.
	Builtin bool

	regular, bold *opentype.Font
}

// Fresh returns a Set with newly created faces over the same parsed fonts.
// A font.Face caches glyph state and must not be shared between goroutines;
// the parsed fonts may be. A Set built without parsed fonts is returned as is.
func (s *Set) Fresh() *Set {
	if s.regular == nil || s.bold == nil {
		return s
	}
	return &Set{
		Regular:     mustFace(s.regular, s.Size),
		Bold:        mustFace(s.bold, s.Size),
		Caption:     mustFace(s.bold, s.CaptionSize),
		Size:        s.Size,
		CaptionSize: s.CaptionSize,
		Builtin:     s.Builtin,
		regular:     s.regular,
		bold:        s.bold,
	}
}

// SizeFor converts a point size at dpi into pixels, applies a visual reduction
// factor and floors the result at minPx.
func SizeFor(points, dpi, reduction float64, minPx int) int {
	px := int(points * dpi / 72 * reduction)
	if px < minPx {
		return minPx
	}
	return px
}

// Load opens the regular and bold faces from dir at sizePx. Any failure falls
// back to the built-in Go fonts at the same size.
func Load(dir string, sizePx int, logger *zap.Logger) *Set {
	if logger == nil {
		logger = zap.NewNop()
	}
	captionPx := int(float64(sizePx) * CaptionScale)

	set, err := loadDir(dir, sizePx, captionPx)
	if err == nil {
		logger.Debug("loaded label fonts", zap.String("dir", dir), zap.Int("size", sizePx))
		return set
	}
	logger.Warn("custom label fonts unavailable, using built-in faces",
		zap.String("dir", dir), zap.Error(err))
	return Builtin(sizePx)
}

// Builtin returns the Go regular/bold faces at sizePx.
func Builtin(sizePx int) *Set {
	captionPx := int(float64(sizePx) * CaptionScale)
	regular := mustParse(goregular.TTF)
	bold := mustParse(gobold.TTF)
	return &Set{
		Regular:     mustFace(regular, sizePx),
		Bold:        mustFace(bold, sizePx),
		Caption:     mustFace(bold, captionPx),
		Size:        sizePx,
		CaptionSize: captionPx,
		Builtin:     true,
		regular:     regular,
		bold:        bold,
	}
}

func loadDir(dir string, sizePx, captionPx int) (*Set, error) {
	if dir == "" {
		return nil, fmt.Errorf("font directory not configured")
	}
	regular, err := parseFile(dir, RegularFile)
	if err != nil {
		return nil, err
	}
	bold, err := parseFile(dir, BoldFile)
	if err != nil {
		return nil, err
	}
	set := &Set{Size: sizePx, CaptionSize: captionPx, regular: regular, bold: bold}
	if set.Regular, err = newFace(regular, sizePx); err != nil {
		return nil, err
	}
	if set.Bold, err = newFace(bold, sizePx); err != nil {
		return nil, err
	}
	if set.Caption, err = newFace(bold, captionPx); err != nil {
		return nil, err
	}
	return set, nil
}

func parseFile(dir, name string) (*opentype.Font, error) {
	path, err := findFile(dir, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", path, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", path, err)
	}
	return f, nil
}

func findFile(dir, name string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read font dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(e.Name(), name) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("font %s not found in %s", name, dir)
}

func newFace(f *opentype.Font, sizePx int) (font.Face, error) {
	// At 72 DPI one point is one pixel.
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(sizePx),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("new face: %w", err)
	}
	return face, nil
}

func mustParse(data []byte) *opentype.Font {
	f, err := opentype.Parse(data)
	if err != nil {
		panic(fmt.Sprintf("fonts: embedded font: %v", err))
	}
	return f
}

func mustFace(f *opentype.Font, sizePx int) font.Face {
	face, err := newFace(f, sizePx)
	if err != nil {
		panic(fmt.Sprintf("fonts: embedded face: %v", err))
	}
	return face
}
