// Package ingest turns an uploaded dataset into stored, rendered labels.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/barcode"
	"github.com/dharsanguruparan/LabelDrop/internal/config"
	"github.com/dharsanguruparan/LabelDrop/internal/metrics"
	"github.com/dharsanguruparan/LabelDrop/internal/model"
	"github.com/dharsanguruparan/LabelDrop/internal/render"
	"github.com/dharsanguruparan/LabelDrop/internal/storage"
)

// Options tune how datasets are read and barcodes chosen.
type Options struct {
	Encodings    []string
	BarcodeMode  string
	Manufacturer string
}

// OptionsFromConfig extracts the ingestion settings from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Encodings:    cfg.Encodings,
		BarcodeMode:  cfg.BarcodeMode,
		Manufacturer: cfg.ManufacturerText,
	}
}

// Result summarises one processing run of a batch.
type Result struct {
	BatchID  string             `json:"batchId"`
	Encoding string             `json:"encoding"`
	Outcomes []model.RowOutcome `json:"outcomes"`
	Rendered int                `json:"rendered"`
	Failed   int                `json:"failed"`
}

// Failures returns the outcomes of rows that produced no stored label.
func (r *Result) Failures() []model.RowOutcome {
	var out []model.RowOutcome
	for _, o := range r.Outcomes {
		if o.Status == model.RowFailed {
			out = append(out, o)
		}
	}
	return out
}

// Service processes batches: it decodes the dataset, replaces the batch's
// label records and renders one PNG per record.
type Service struct {
	repo      storage.Repository
	blobs     storage.Blobs
	renderer  *render.Renderer
	generator *barcode.Generator
	opts      Options
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewService wires a Service. m may be nil.
func NewService(repo storage.Repository, blobs storage.Blobs, renderer *render.Renderer,
	generator *barcode.Generator, opts Options, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = render.New(nil, render.DefaultInk, logger)
	}
	if generator == nil {
		generator = barcode.NewGenerator(nil, logger)
	}
	if opts.Manufacturer == "" {
		opts.Manufacturer = config.DefaultManufacturer
	}
	return &Service{
		repo:      repo,
		blobs:     blobs,
		renderer:  renderer,
		generator: generator,
		opts:      opts,
		metrics:   m,
		logger:    logger.Named("ingest"),
	}
}

// Process (re)builds every label of a batch from its stored dataset.
//
// A dataset that cannot be read returns an *IngestionError and leaves the batch
// and its existing labels untouched. Otherwise the previous labels and their
// images are discarded, every row becomes a record in file order, and the
// batch is marked processed even when individual rows fail; those failures are
// reported in the Result. Concurrent calls for the same batch run one after
// the other.
func (s *Service) Process(ctx context.Context, batchID string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock := batchLocks.Lock(batchID)
	defer unlock()

	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("get batch %s: %w", batchID, err)
	}
	log := s.logger.With(zap.String("batch", batchID))

	data, err := s.blobs.Get(ctx, batch.DatasetPath)
	if err != nil {
		s.metrics.BatchRejected()
		return nil, &IngestionError{BatchID: batchID, Err: fmt.Errorf("read dataset: %w", err)}
	}
	text, encoding, err := Decode(data, s.opts.Encodings)
	if err != nil {
		s.metrics.BatchRejected()
		return nil, &IngestionError{BatchID: batchID, Tried: s.encodings(), Err: err}
	}
	_, rows, err := Parse(text)
	switch {
	case errors.Is(err, ErrMissingHeader), err != nil && len(rows) == 0:
		s.metrics.BatchRejected()
		return nil, &IngestionError{BatchID: batchID, Err: err}
	case err != nil:
		log.Warn("dataset truncated at malformed row", zap.Int("rows", len(rows)), zap.Error(err))
	}

	if err := s.discardLabels(ctx, batchID); err != nil {
		return nil, err
	}

	artifacts, err := s.repo.ListArtifacts(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	resolver := barcode.ForBatch(s.opts.BarcodeMode, s.generator, artifacts, s.blobs, log)

	result := &Result{BatchID: batchID, Encoding: encoding}
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome := s.processRow(ctx, batchID, i, row, resolver, log)
		if outcome.Status == model.RowRendered {
			result.Rendered++
		} else {
			result.Failed++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	if err := s.repo.MarkProcessed(ctx, batchID); err != nil {
		return result, fmt.Errorf("mark processed: %w", err)
	}
	s.metrics.BatchProcessed()
	log.Info("batch processed",
		zap.String("encoding", encoding),
		zap.Int("rendered", result.Rendered),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (s *Service) processRow(ctx context.Context, batchID string, position int, row *Row,
	resolver barcode.Resolver, log *zap.Logger) model.RowOutcome {
	rec := Record(row, s.opts.Manufacturer)
	rec.ID = uuid.NewString()
	rec.BatchID = batchID
	rec.Position = position

	outcome := model.RowOutcome{Line: row.Line, ProductCode: rec.ProductCode, Status: model.RowFailed}
	fail := func(stage string, err error) model.RowOutcome {
		rowErr := &RowError{Line: row.Line, ProductCode: rec.ProductCode, Stage: stage, Err: err}
		log.Warn("row failed", zap.Error(rowErr))
		s.metrics.LabelFailed()
		outcome.Message = rowErr.Error()
		return outcome
	}

	if err := s.repo.CreateLabel(ctx, &rec); err != nil {
		return fail("create", err)
	}
	outcome.LabelID = rec.ID

	start := time.Now()
	art := resolveBarcode(ctx, resolver, rec.GTIN)
	if art == nil && strings.TrimSpace(rec.GTIN) != "" {
		s.metrics.BarcodeMissed()
	}
	png, err := s.renderer.RenderPNG(&rec, art)
	if err != nil {
		return fail("render", err)
	}
	path := storage.LabelImagePath(batchID, rec.ID)
	if err := s.blobs.Put(ctx, path, png); err != nil {
		return fail("store", err)
	}
	if err := s.repo.UpdateLabelImage(ctx, rec.ID, path); err != nil {
		return fail("store", err)
	}
	s.metrics.LabelRendered(time.Since(start))

	outcome.Status = model.RowRendered
	outcome.Barcode = art != nil
	return outcome
}

func (s *Service) discardLabels(ctx context.Context, batchID string) error {
	removed, err := s.repo.DeleteLabels(ctx, batchID)
	if err != nil {
		return fmt.Errorf("discard labels: %w", err)
	}
	for _, l := range removed {
		if !l.HasImage() {
			continue
		}
		if err := s.blobs.Delete(ctx, l.ImagePath); err != nil {
			s.logger.Warn("remove stale label image", zap.String("path", l.ImagePath), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) encodings() []string {
	if len(s.opts.Encodings) == 0 {
		return DefaultEncodings
	}
	return s.opts.Encodings
}
