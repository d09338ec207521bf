package render

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// FitSize scales a w×h image to fit inside maxW×maxH keeping its aspect ratio:
// width first, then constrained by height.
func FitSize(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 || maxW <= 0 || maxH <= 0 {
		return 0, 0
	}
	ratio := float64(w) / float64(h)
	fw, fh := maxW, int(float64(maxW)/ratio)
	if fh > maxH {
		fh = maxH
		fw = int(float64(fh) * ratio)
	}
	return fw, fh
}

// placeBarcode scales src into region and centers it on both axes. It returns
// the rectangle painted, or an empty rectangle when nothing fits.
func placeBarcode(dst draw.Image, src image.Image, region image.Rectangle) image.Rectangle {
	b := src.Bounds()
	fw, fh := FitSize(b.Dx(), b.Dy(), region.Dx(), region.Dy())
	if fw <= 0 || fh <= 0 {
		return image.Rectangle{}
	}

	// Flatten onto white first so transparent artwork prints as paper.
	scaled := image.NewRGBA(image.Rect(0, 0, fw, fh))
	draw.Draw(scaled, scaled.Bounds(), image.White, image.Point{}, draw.Src)
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), src, b, xdraw.Over, nil)

	x := region.Min.X + (region.Dx()-fw)/2
	y := region.Min.Y + (region.Dy()-fh)/2
	target := image.Rect(x, y, x+fw, y+fh)
	draw.Draw(dst, target, scaled, image.Point{}, draw.Src)
	return target
}
