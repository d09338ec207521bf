package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/model"
	"github.com/dharsanguruparan/LabelDrop/internal/render"
	"github.com/dharsanguruparan/LabelDrop/internal/storage"
)

// ArchiveExporter packs label images into a ZIP of print-ready CMYK TIFFs.
type ArchiveExporter struct {
	blobs   storage.Blobs
	tempDir string
	logger  *zap.Logger
}

// NewArchiveExporter builds an ArchiveExporter. Per-label conversion files are
// created in tempDir, or the system default when it is empty.
func NewArchiveExporter(blobs storage.Blobs, tempDir string, logger *zap.Logger) *ArchiveExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveExporter{blobs: blobs, tempDir: tempDir, logger: logger}
}

// Write adds one TIFF per label that has an image, in the given order, and
// returns the number of entries written. Labels without an image are skipped.
// An empty label list produces a valid empty archive.
func (a *ArchiveExporter) Write(ctx context.Context, labels []model.LabelRecord, w io.Writer) (int, error) {
	zw := zip.NewWriter(w)
	names := make(map[string]int, len(labels))
	written := 0
	for i := range labels {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return written, err
		}
		l := &labels[i]
		if !l.HasImage() {
			continue
		}
		data, err := a.blobs.Get(ctx, l.ImagePath)
		if errors.Is(err, storage.ErrNotFound) {
			a.logger.Warn("label image missing, skipped", zap.String("label", l.ID), zap.String("path", l.ImagePath))
			continue
		}
		if err != nil {
			zw.Close()
			return written, fmt.Errorf("read label %s: %w", l.ID, err)
		}
		if err := a.addEntry(zw, entryName(l.ProductCode, names), l.ID, data); err != nil {
			zw.Close()
			return written, err
		}
		written++
	}
	if err := zw.Close(); err != nil {
		return written, fmt.Errorf("finish archive: %w", err)
	}
	return written, nil
}

// addEntry converts one PNG through a temporary TIFF file and copies it into
// the archive. The temporary file is removed on every path.
func (a *ArchiveExporter) addEntry(zw *zip.Writer, name, labelID string, data []byte) error {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode label %s: %w", labelID, err)
	}

	tmp, err := os.CreateTemp(a.tempDir, "label-*.tif")
	if err != nil {
		return fmt.Errorf("create temp tiff: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	dpi := render.DPIOf(data)
	if dpi == 0 {
		dpi = render.DPI
	}
	if err := EncodeCMYKTIFF(tmp, ToCMYK(img), dpi); err != nil {
		return fmt.Errorf("encode tiff for label %s: %w", labelID, err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind temp tiff: %w", err)
	}

	entry, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := io.Copy(entry, tmp); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// entryName is label_<product code>.tif. Repeated codes get a numeric suffix
// so no entry shadows another.
func entryName(productCode string, seen map[string]int) string {
	code := strings.NewReplacer("/", "-", "\\", "-").Replace(strings.TrimSpace(productCode))
	seen[code]++
	if n := seen[code]; n > 1 {
		return fmt.Sprintf("label_%s_%d.tif", code, n)
	}
	return fmt.Sprintf("label_%s.tif", code)
}
