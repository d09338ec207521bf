package ingest

import (
	"context"
	"image"
	"strings"

	"github.com/dharsanguruparan/LabelDrop/internal/barcode"
)

// resolveBarcode returns nil when code is blank or has no artwork.
func resolveBarcode(ctx context.Context, r barcode.Resolver, code string) image.Image {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}
	img, ok := r.Resolve(ctx, code)
	if !ok {
		return nil
	}
	return img
}
