// Package render draws print-ready product labels: a fixed 2"×3" canvas at
// 300 DPI with a bordered two-column field table, the manufacturer block and a
// bottom-pinned barcode above the origin caption.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/dharsanguruparan/LabelDrop/internal/fonts"
	"github.com/dharsanguruparan/LabelDrop/internal/model"
	"github.com/dharsanguruparan/LabelDrop/internal/textlayout"
)

// Canvas geometry in pixels at DPI.
const (
	DPI    = 300
	Width  = 2 * DPI
	Height = 3 * DPI

	BorderOffset = 15
	BorderWidth  = 2
	Padding      = 20
	ColumnGap    = 8

	// Type size: 6.5pt reduced by 0.9 for visual balance, never under 10px.
	PointSize       = 6.5
	VisualReduction = 0.9
	MinPixelSize    = 10
)

const (
	labelColumnRatio    = 0.4
	manufacturerCaption = "Manufactured and Marketed By :"
	originCaption       = "Make in India"
)

// DefaultInk is the label text and border colour.
var DefaultInk = color.RGBA{R: 0x81, G: 0x64, B: 0x57, A: 0xff}

// Layout is the geometry computed while drawing a label. All values are in
// canvas pixels; tops are the ascender line of the text drawn there.
type Layout struct {
	ContentX     int
	ContentY     int
	ContentWidth int
	ValueX       int
	ValueWidth   int
	LineHeight   int
	RowGap       int

	RowTops  []int
	RowLines []int

	ManufacturerTop int
	ManufacturerEnd int

	// BarcodeRegion is the space reserved between the manufacturer block and
	// the caption; Barcode is where artwork was placed (empty when none).
	BarcodeRegion image.Rectangle
	Barcode       image.Rectangle
	CaptionTop    int
}

// Renderer draws labels with one font set and ink colour. It may be shared
// between goroutines: each Render borrows its own faces from a pool.
type Renderer struct {
	faces  sync.Pool
	ink    color.RGBA
	logger *zap.Logger
}

// New builds a Renderer. A nil set selects the built-in faces at the default
// size.
func New(set *fonts.Set, ink color.RGBA, logger *zap.Logger) *Renderer {
	if set == nil {
		set = fonts.Builtin(DefaultPixelSize())
	}
	if ink.A == 0 {
		ink = DefaultInk
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Renderer{ink: ink, logger: logger}
	r.faces.New = func() any { return set.Fresh() }
	return r
}

// DefaultPixelSize is the body font size in pixels.
func DefaultPixelSize() int {
	return fonts.SizeFor(PointSize, DPI, VisualReduction, MinPixelSize)
}

// ParseColor parses a #rrggbb colour.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// Fields returns the table rows printed for rec, in print order.
func Fields(rec *model.LabelRecord) [][2]string {
	return [][2]string{
		{"Product :", rec.ProductName},
		{"MRP :", rec.MRP},
		{"Quality :", rec.Quality},
		{"Size :", rec.Size},
		{"Net Quantity :", rec.NetQuantity},
		{"Product Code :", rec.ProductCode},
		{"Design / Color :", rec.DesignColor},
		{"Mth & Year of Mfg. :", strings.TrimSpace(rec.MfgDate())},
	}
}

// Render draws rec onto a new Width×Height canvas. barcode may be nil, in
// which case the barcode region stays blank.
func (r *Renderer) Render(rec *model.LabelRecord, barcode image.Image) (*image.RGBA, *Layout) {
	fs := r.faces.Get().(*fonts.Set)
	defer r.faces.Put(fs)

	canvas := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	r.drawBorder(canvas)

	size := fs.Size
	x := BorderOffset + BorderWidth + Padding
	y := x
	lh := int(float64(size) * 1.3)
	contentWidth := Width - 2*x
	labelWidth := int(float64(contentWidth) * labelColumnRatio)

	lay := &Layout{
		ContentX:     x,
		ContentY:     y,
		ContentWidth: contentWidth,
		ValueX:       x + labelWidth + ColumnGap,
		ValueWidth:   contentWidth - labelWidth - ColumnGap,
		LineHeight:   lh,
		RowGap:       lh / 3,
	}

	for _, field := range Fields(rec) {
		r.text(canvas, fs.Bold, x, y, field[0])
		lines := textlayout.Wrap(field[1], fs.Regular, lay.ValueWidth)
		for i, line := range lines {
			r.text(canvas, fs.Regular, lay.ValueX, y+i*lh, line)
		}
		lay.RowTops = append(lay.RowTops, y)
		lay.RowLines = append(lay.RowLines, len(lines))
		y += lh*max(1, len(lines)) + lay.RowGap
	}

	y += int(float64(lh) * 1.1)
	lay.ManufacturerTop = y
	r.text(canvas, fs.Bold, x, y, manufacturerCaption)
	y += lh
	for _, part := range strings.Split(rec.Manufacturer, "\n") {
		for _, line := range textlayout.Wrap(part, fs.Regular, contentWidth) {
			r.text(canvas, fs.Regular, x, y, line)
			y += lh
		}
	}
	lay.ManufacturerEnd = y
	y += lh / 2

	// The caption is pinned to the bottom inner margin; the barcode takes
	// whatever is left between the manufacturer block and the caption.
	captionHeight := fs.CaptionSize + lh/4
	bottom := Height - (BorderOffset + BorderWidth + Padding)
	lay.CaptionTop = bottom - captionHeight
	// Built literally: image.Rect would swap the bounds when text overflows.
	lay.BarcodeRegion = image.Rectangle{
		Min: image.Point{X: x, Y: y},
		Max: image.Point{X: x + contentWidth, Y: lay.CaptionTop},
	}

	if barcode != nil && lay.BarcodeRegion.Dy() > 0 {
		lay.Barcode = placeBarcode(canvas, barcode, lay.BarcodeRegion)
	}

	captionWidth := font.MeasureString(fs.Caption, originCaption)
	r.textFixed(canvas, fs.Caption, (fixed.I(Width)-captionWidth)/2, lay.CaptionTop, originCaption)
	return canvas, lay
}

// RenderPNG renders rec and encodes it as a PNG tagged with DPI.
func (r *Renderer) RenderPNG(rec *model.LabelRecord, barcode image.Image) ([]byte, error) {
	canvas, _ := r.Render(rec, barcode)
	data, err := EncodePNG(canvas, DPI)
	if err != nil {
		return nil, fmt.Errorf("encode label %s: %w", rec.ID, err)
	}
	return data, nil
}

func (r *Renderer) drawBorder(dst draw.Image) {
	ink := image.NewUniform(r.ink)
	lo, hi := BorderOffset, Width-BorderOffset
	top, bottom := BorderOffset, Height-BorderOffset
	for _, rect := range []image.Rectangle{
		image.Rect(lo, top, hi+1, top+BorderWidth),
		image.Rect(lo, bottom-BorderWidth+1, hi+1, bottom+1),
		image.Rect(lo, top, lo+BorderWidth, bottom+1),
		image.Rect(hi-BorderWidth+1, top, hi+1, bottom+1),
	} {
		draw.Draw(dst, rect, ink, image.Point{}, draw.Src)
	}
}

func (r *Renderer) text(dst draw.Image, face font.Face, x, top int, s string) {
	r.textFixed(dst, face, fixed.I(x), top, s)
}

// textFixed draws s with its ascender line at top.
func (r *Renderer) textFixed(dst draw.Image, face font.Face, x fixed.Int26_6, top int, s string) {
	if s == "" {
		return
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(r.ink),
		Face: face,
		Dot:  fixed.Point26_6{X: x, Y: fixed.I(top) + face.Metrics().Ascent},
	}
	d.DrawString(s)
}
