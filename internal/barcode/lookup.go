package barcode

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg" // artwork may be supplied as JPEG despite the naming convention
	_ "image/png"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/model"
)

const (
	artifactPrefix = "ean_"
	artifactSuffix = ".png"
)

// CodeFromFilename extracts the lower-cased identifier code from an artifact
// filename following the ean_<code>.png convention.
func CodeFromFilename(name string) (string, bool) {
	base := strings.ToLower(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if !strings.HasPrefix(base, artifactPrefix) || !strings.HasSuffix(base, artifactSuffix) {
		return "", false
	}
	code := strings.TrimSuffix(strings.TrimPrefix(base, artifactPrefix), artifactSuffix)
	if code == "" {
		return "", false
	}
	return code, true
}

// Lookup resolves codes against artwork supplied with a batch.
type Lookup struct {
	paths  map[string]string
	src    Source
	logger *zap.Logger
}

// NewLookup indexes artifacts by code. Artifacts are expected oldest first;
// when two share a code the later one wins.
func NewLookup(artifacts []model.BarcodeArtifact, src Source, logger *zap.Logger) *Lookup {
	if logger == nil {
		logger = zap.NewNop()
	}
	paths := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		code := strings.ToLower(a.Code)
		if code == "" {
			var ok bool
			if code, ok = CodeFromFilename(a.Filename); !ok {
				continue
			}
		}
		if prev, dup := paths[code]; dup {
			logger.Warn("duplicate barcode artifact, keeping newest",
				zap.String("code", code), zap.String("replaced", prev), zap.String("kept", a.Path))
		}
		paths[code] = a.Path
	}
	return &Lookup{paths: paths, src: src, logger: logger}
}

// Len reports how many codes the lookup can resolve.
func (l *Lookup) Len() int { return len(l.paths) }

// Path returns the artifact path registered for code.
func (l *Lookup) Path(code string) (string, bool) {
	p, ok := l.paths[strings.ToLower(strings.TrimSpace(code))]
	return p, ok
}

// Resolve implements Resolver.
func (l *Lookup) Resolve(ctx context.Context, code string) (image.Image, bool) {
	p, ok := l.Path(code)
	if !ok {
		return nil, false
	}
	data, err := l.src.Get(ctx, p)
	if err != nil {
		l.logger.Warn("read barcode artifact", zap.String("path", p), zap.Error(err))
		return nil, false
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		l.logger.Warn("decode barcode artifact", zap.String("path", p), zap.Error(err))
		return nil, false
	}
	return img, true
}
