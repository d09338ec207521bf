// Package worker runs queued batch renders.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/ingest"
	"github.com/dharsanguruparan/LabelDrop/internal/queue"
	"github.com/dharsanguruparan/LabelDrop/internal/storage"
)

// BatchProcessor is the ingestion entry point the worker drives.
type BatchProcessor interface {
	Process(ctx context.Context, batchID string) (*ingest.Result, error)
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	svc    BatchProcessor
	logger *zap.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(svc BatchProcessor, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{svc: svc, logger: logger.Named("worker")}
}

// Handler registers the render job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.RenderBatchTask, p.handleRender)
	return mux
}

func (p *Processor) handleRender(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.ParseRenderPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	log := p.logger.With(zap.String("batch", payload.BatchID))

	res, err := p.svc.Process(ctx, payload.BatchID)
	var ingestErr *ingest.IngestionError
	switch {
	case errors.As(err, &ingestErr), errors.Is(err, storage.ErrNotFound):
		// Retrying cannot fix an unreadable dataset or a deleted batch.
		log.Warn("render abandoned", zap.Error(err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	case err != nil:
		log.Error("render failed", zap.Error(err))
		return err
	}
	log.Info("render complete", zap.Int("rendered", res.Rendered), zap.Int("failed", res.Failed))
	return nil
}
