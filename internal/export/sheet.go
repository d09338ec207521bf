package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"math"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/model"
	"github.com/dharsanguruparan/LabelDrop/internal/storage"
)

// Sheet geometry in points.
const (
	PageWidth   = 612.0
	PageHeight  = 792.0
	CellWidth   = 144.0
	CellHeight  = 216.0
	SheetMargin = 36.0
)

// Grid is the number of label cells per row and column of a page.
func Grid() (perRow, perColumn int) {
	usableW, usableH := PageWidth-2*SheetMargin, PageHeight-2*SheetMargin
	perRow = int(math.Floor(usableW / CellWidth))
	perColumn = int(math.Floor(usableH / CellHeight))
	return perRow, perColumn
}

// CellOrigin returns the top-left corner of grid slot n (0-based, counted
// across pages) on its page.
func CellOrigin(n int) (x, y float64) {
	perRow, perColumn := Grid()
	slot := n % (perRow * perColumn)
	x = SheetMargin + float64(slot%perRow)*CellWidth
	y = SheetMargin + float64(slot/perRow)*CellHeight
	return x, y
}

// PagesFor is the number of pages a sheet of n labels occupies.
func PagesFor(n int) int {
	perRow, perColumn := Grid()
	perPage := perRow * perColumn
	if n <= perPage {
		return 1
	}
	return (n + perPage - 1) / perPage
}

// SheetExporter tiles label images onto US Letter pages.
type SheetExporter struct {
	blobs  storage.Blobs
	logger *zap.Logger
	now    func() time.Time
}

// NewSheetExporter builds a SheetExporter.
func NewSheetExporter(blobs storage.Blobs, logger *zap.Logger) *SheetExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SheetExporter{blobs: blobs, logger: logger, now: time.Now}
}

// Write lays the labels out left to right, top to bottom, and returns the page
// count. Every label takes a grid slot; a label whose image is absent leaves
// its slot empty. A page break happens only when more labels follow.
func (s *SheetExporter) Write(ctx context.Context, labels []model.LabelRecord, w io.Writer) (int, error) {
	perRow, perColumn := Grid()
	perPage := perRow * perColumn

	doc := fpdf.New("P", "pt", "Letter", "")
	doc.SetCreationDate(s.now())
	doc.SetCreator("LabelDrop", false)
	doc.SetAutoPageBreak(false, 0)
	doc.AddPage()

	for i := range labels {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if i > 0 && i%perPage == 0 {
			doc.AddPage()
		}
		l := &labels[i]
		data, ok, err := s.image(ctx, l)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}

		name := "label-" + l.ID
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		info := doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		if doc.Err() {
			return 0, fmt.Errorf("register label %s: %w", l.ID, doc.Error())
		}
		x, y := CellOrigin(i)
		iw, ih, dx, dy := fitCell(info.Width(), info.Height())
		doc.ImageOptions(name, x+dx, y+dy, iw, ih, false, opts, 0, "")
	}

	if err := doc.Output(w); err != nil {
		return 0, fmt.Errorf("write pdf: %w", err)
	}
	return doc.PageCount(), nil
}

// image returns the PNG bytes of a label, or false when it has none usable.
func (s *SheetExporter) image(ctx context.Context, l *model.LabelRecord) ([]byte, bool, error) {
	if !l.HasImage() {
		return nil, false, nil
	}
	data, err := s.blobs.Get(ctx, l.ImagePath)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("label image missing, slot left empty", zap.String("label", l.ID))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read label %s: %w", l.ID, err)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		s.logger.Warn("label image unreadable, slot left empty", zap.String("label", l.ID), zap.Error(err))
		return nil, false, nil
	}
	return data, true, nil
}

// fitCell scales an image of w×h to fit a cell preserving its aspect ratio and
// returns the drawn size and its offset to center it in the cell.
func fitCell(w, h float64) (fw, fh, dx, dy float64) {
	if w <= 0 || h <= 0 {
		return CellWidth, CellHeight, 0, 0
	}
	scale := math.Min(CellWidth/w, CellHeight/h)
	fw, fh = w*scale, h*scale
	return fw, fh, (CellWidth - fw) / 2, (CellHeight - fh) / 2
}
