// Package storage defines the persistence collaborators LabelDrop depends on
// and provides the in-memory and local-filesystem implementations.
package storage

import (
	"context"
	"errors"

	"github.com/dharsanguruparan/LabelDrop/internal/model"
)

var (
	// ErrNotFound is returned when a batch or label does not exist.
	ErrNotFound = errors.New("not found")
)

// Repository persists batches, their label records and barcode artifacts.
// Every label and artifact is scoped to exactly one batch.
type Repository interface {
	CreateBatch(ctx context.Context, batch *model.Batch) error
	GetBatch(ctx context.Context, id string) (*model.Batch, error)
	// ListBatches returns batches newest first.
	ListBatches(ctx context.Context) ([]model.Batch, error)
	MarkProcessed(ctx context.Context, id string) error
	// DeleteBatch removes the batch with its labels and artifacts and returns
	// the blob paths that belonged to them.
	DeleteBatch(ctx context.Context, id string) ([]string, error)

	// AddArtifact stores an artifact. An existing artifact of the same batch
	// with the same code is replaced and returned.
	AddArtifact(ctx context.Context, artifact *model.BarcodeArtifact) (*model.BarcodeArtifact, error)
	// ListArtifacts returns a batch's artifacts oldest first.
	ListArtifacts(ctx context.Context, batchID string) ([]model.BarcodeArtifact, error)

	CreateLabel(ctx context.Context, label *model.LabelRecord) error
	GetLabel(ctx context.Context, batchID, id string) (*model.LabelRecord, error)
	UpdateLabelImage(ctx context.Context, id, imagePath string) error
	// ListLabels returns a batch's labels ordered by Position.
	ListLabels(ctx context.Context, batchID string) ([]model.LabelRecord, error)
	// DeleteLabels removes every label of a batch and returns them.
	DeleteLabels(ctx context.Context, batchID string) ([]model.LabelRecord, error)
}

// Blobs stores opaque bytes by slash-separated path.
type Blobs interface {
	// Put stores data at path, removing whatever was stored there before.
	Put(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
	// Delete removes path; deleting a missing path is not an error.
	Delete(ctx context.Context, path string) error
}
