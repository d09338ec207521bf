package server

import (
	"context"

	"github.com/dharsanguruparan/LabelDrop/internal/ingest"
)

// Dispatcher starts processing of a batch. A nil Result means the work was
// handed off and will finish later.
type Dispatcher interface {
	Dispatch(ctx context.Context, batchID string) (*ingest.Result, error)
}

// Inline processes batches within the request.
type Inline struct {
	Service *ingest.Service
}

// Dispatch implements Dispatcher.
func (d Inline) Dispatch(ctx context.Context, batchID string) (*ingest.Result, error) {
	return d.Service.Process(ctx, batchID)
}
