package barcode

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	bc "github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/ean"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/dharsanguruparan/LabelDrop/internal/fonts"
)

const (
	moduleWidth = 2   // pixels per bar module
	barHeight   = 120 // pixels
	quietZone   = 10  // modules of white on each side
	textGap     = 6   // pixels between bars and caption
	captionPx   = 32
)

// Generator renders barcode symbols on demand, with the code printed beneath
// the bars.
type Generator struct {
	// mu guards face, which caches glyphs and is not safe for concurrent use.
	mu     sync.Mutex
	face   font.Face
	logger *zap.Logger
}

// NewGenerator builds a Generator. A nil face selects the built-in regular face.
func NewGenerator(face font.Face, logger *zap.Logger) *Generator {
	if face == nil {
		face = fonts.Builtin(captionPx).Regular
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{face: face, logger: logger}
}

// Resolve implements Resolver.
func (g *Generator) Resolve(_ context.Context, code string) (image.Image, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, false
	}
	img, err := g.Generate(code)
	if err != nil {
		g.logger.Debug("barcode generation failed", zap.String("code", code), zap.Error(err))
		return nil, false
	}
	return img, true
}

// Generate encodes code with the symbology chosen by its length and returns
// the composed raster.
func (g *Generator) Generate(code string) (image.Image, error) {
	code = strings.TrimSpace(code)
	sym := SymbologyFor(code)
	bars, err := encode(sym, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q: %v", ErrNoBarcode, sym, code, err)
	}
	modules := bars.Bounds().Dx()
	scaled, err := bc.Scale(bars, modules*moduleWidth, barHeight)
	if err != nil {
		return nil, fmt.Errorf("scale %s: %w", sym, err)
	}
	return g.compose(scaled, code), nil
}

func encode(sym Symbology, code string) (bc.Barcode, error) {
	switch sym {
	case EAN13, EAN8:
		return ean.Encode(code)
	case EAN14:
		if !allDigits(code) {
			return nil, fmt.Errorf("non-digit in %q", code)
		}
		// GS1-128 carrying application identifier 01 (GTIN).
		return code128.Encode(string(code128.FNC1) + "01" + code)
	default:
		return code128.Encode(code)
	}
}

func (g *Generator) compose(bars image.Image, text string) image.Image {
	g.mu.Lock()
	defer g.mu.Unlock()

	metrics := g.face.Metrics()
	textHeight := (metrics.Ascent + metrics.Descent).Ceil()
	quiet := quietZone * moduleWidth
	width := bars.Bounds().Dx() + 2*quiet
	height := barHeight + textGap + textHeight + quiet/2

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(quiet, 0, quiet+bars.Bounds().Dx(), barHeight), bars, bars.Bounds().Min, draw.Src)

	advance := font.MeasureString(g.face, text)
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.Black),
		Face: g.face,
		Dot: fixed.Point26_6{
			X: (fixed.I(width) - advance) / 2,
			Y: fixed.I(barHeight+textGap) + metrics.Ascent,
		},
	}
	d.DrawString(text)
	return canvas
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
