// Package barcode produces the barcode artwork printed at the bottom of a
// label, either by generating a symbol from the identifier code or by looking
// up artwork supplied with the batch.
//
// Resolution never fails loudly: any problem yields "no barcode" and the label
// is rendered with a blank barcode region.
package barcode

import (
	"context"
	"errors"
	"image"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/config"
	"github.com/dharsanguruparan/LabelDrop/internal/model"
)

// ErrNoBarcode is logged when a code cannot be turned into artwork.
var ErrNoBarcode = errors.New("no barcode available")

// Resolver turns an identifier code into barcode artwork.
type Resolver interface {
	// Resolve returns the artwork for code, or false when none is available.
	Resolve(ctx context.Context, code string) (image.Image, bool)
}

// Source reads stored artifact bytes.
type Source interface {
	Get(ctx context.Context, path string) ([]byte, error)
}

// ForBatch selects the resolver for a batch according to mode. In auto mode a
// batch that came with artifacts uses lookup, otherwise codes are generated.
func ForBatch(mode string, gen *Generator, artifacts []model.BarcodeArtifact, src Source, logger *zap.Logger) Resolver {
	switch mode {
	case config.BarcodeGenerate:
		return gen
	case config.BarcodeLookup:
		return NewLookup(artifacts, src, logger)
	}
	if len(artifacts) > 0 {
		return NewLookup(artifacts, src, logger)
	}
	return gen
}
