// Package export packages a batch's rendered labels for print: a ZIP of CMYK
// TIFFs or a PDF sheet of tiled labels.
package export

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/metrics"
	"github.com/dharsanguruparan/LabelDrop/internal/model"
	pdfutil "github.com/dharsanguruparan/LabelDrop/internal/pdf"
	"github.com/dharsanguruparan/LabelDrop/internal/storage"
)

// Kind selects an export format.
type Kind string

const (
	KindArchive Kind = "zip"
	KindSheet   Kind = "pdf"
)

// ParseKind validates an export kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindArchive, KindSheet:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown export kind %q", s)
}

// ContentType is the MIME type served for the kind.
func (k Kind) ContentType() string {
	if k == KindSheet {
		return "application/pdf"
	}
	return "application/zip"
}

// Filename is the download name offered for a batch export.
func (k Kind) Filename(batchID string) string {
	return fmt.Sprintf("labels_%s.%s", batchID, k)
}

// Artifact describes a published export.
type Artifact struct {
	Kind    Kind   `json:"kind"`
	BatchID string `json:"batchId"`
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	// Items is the archive entry count or the sheet page count.
	Items int `json:"items"`
}

// Exporter produces batch exports and publishes them to blob storage. Output
// is built in a temporary file and verified before it is published, so a
// failed export never replaces a previous good one.
type Exporter struct {
	repo    storage.Repository
	blobs   storage.Blobs
	archive *ArchiveExporter
	sheet   *SheetExporter
	tempDir string
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New wires an Exporter. m may be nil.
func New(repo storage.Repository, blobs storage.Blobs, tempDir string, m *metrics.Metrics, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("export")
	return &Exporter{
		repo:    repo,
		blobs:   blobs,
		archive: NewArchiveExporter(blobs, tempDir, logger),
		sheet:   NewSheetExporter(blobs, logger),
		tempDir: tempDir,
		metrics: m,
		logger:  logger,
	}
}

// Export builds the kind export of a batch and stores it at
// storage.ExportPath.
func (e *Exporter) Export(ctx context.Context, kind Kind, batchID string) (*Artifact, error) {
	art, err := e.export(ctx, kind, batchID)
	e.metrics.Export(string(kind), err)
	if err != nil {
		e.logger.Error("export failed", zap.String("batch", batchID), zap.String("kind", string(kind)), zap.Error(err))
		return nil, err
	}
	e.logger.Info("export published",
		zap.String("batch", batchID),
		zap.String("kind", string(kind)),
		zap.String("path", art.Path),
		zap.Int("items", art.Items))
	return art, nil
}

func (e *Exporter) export(ctx context.Context, kind Kind, batchID string) (*Artifact, error) {
	fail := func(op string, err error) error {
		return &Error{Kind: kind, BatchID: batchID, Op: op, Err: err}
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, fail("validate", err)
	}
	if _, err := e.repo.GetBatch(ctx, batchID); err != nil {
		return nil, fail("load batch", err)
	}
	labels, err := e.repo.ListLabels(ctx, batchID)
	if err != nil {
		return nil, fail("list labels", err)
	}

	tmp, err := os.CreateTemp(e.tempDir, "export-*."+string(kind))
	if err != nil {
		return nil, fail("create temp file", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	items, err := e.write(ctx, kind, labels, tmp)
	if err != nil {
		return nil, fail("write", err)
	}
	size, err := tmp.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fail("size", err)
	}
	if kind == KindSheet && items != PagesFor(len(labels)) {
		return nil, fail("verify", fmt.Errorf("sheet of %d labels has %d pages, want %d",
			len(labels), items, PagesFor(len(labels))))
	}
	if err := verify(kind, tmp, size, items); err != nil {
		return nil, fail("verify", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fail("rewind", err)
	}
	data, err := io.ReadAll(tmp)
	if err != nil {
		return nil, fail("read back", err)
	}
	path := storage.ExportPath(batchID, string(kind))
	if err := e.blobs.Put(ctx, path, data); err != nil {
		return nil, fail("publish", err)
	}
	return &Artifact{Kind: kind, BatchID: batchID, Path: path, Size: size, Items: items}, nil
}

func (e *Exporter) write(ctx context.Context, kind Kind, labels []model.LabelRecord, w io.Writer) (int, error) {
	if kind == KindSheet {
		return e.sheet.Write(ctx, labels, w)
	}
	return e.archive.Write(ctx, labels, w)
}

// verify re-opens the finished output and checks it holds items entries or
// pages.
func verify(kind Kind, r io.ReaderAt, size int64, items int) error {
	switch kind {
	case KindSheet:
		pages, err := pdfutil.PageCount(r, size)
		if err != nil {
			return err
		}
		if pages != items {
			return fmt.Errorf("pdf has %d pages, wrote %d", pages, items)
		}
	default:
		zr, err := zip.NewReader(r, size)
		if err != nil {
			return err
		}
		if len(zr.File) != items {
			return fmt.Errorf("archive has %d entries, wrote %d", len(zr.File), items)
		}
	}
	return nil
}
