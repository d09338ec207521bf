// Package storagetest holds behaviour checks shared by every
// storage.Repository implementation.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/LabelDrop/internal/model"
	"github.com/dharsanguruparan/LabelDrop/internal/storage"
)

// RunRepository exercises repo against the storage.Repository contract.
// newRepo must return an empty repository.
func RunRepository(t *testing.T, newRepo func(t *testing.T) storage.Repository) {
	t.Run("batch lifecycle", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		id := uuid.NewString()
		require.NoError(t, repo.CreateBatch(ctx, &model.Batch{ID: id, DatasetName: "a.csv", DatasetPath: "datasets/" + id + "/a.csv"}))

		got, err := repo.GetBatch(ctx, id)
		require.NoError(t, err)
		assert.False(t, got.Processed)
		require.NoError(t, repo.MarkProcessed(ctx, id))
		got, err = repo.GetBatch(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.Processed)

		_, err = repo.GetBatch(ctx, uuid.NewString())
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, repo.MarkProcessed(ctx, uuid.NewString()), storage.ErrNotFound)
	})

	t.Run("batches newest first", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		older, newer := uuid.NewString(), uuid.NewString()
		require.NoError(t, repo.CreateBatch(ctx, &model.Batch{ID: older, CreatedAt: time.Now().Add(-time.Hour)}))
		require.NoError(t, repo.CreateBatch(ctx, &model.Batch{ID: newer}))
		list, err := repo.ListBatches(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(list), 2)
		assert.Equal(t, newer, list[0].ID)
	})

	t.Run("labels ordered by position", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		batch := uuid.NewString()
		require.NoError(t, repo.CreateBatch(ctx, &model.Batch{ID: batch}))
		ids := make([]string, 3)
		for i := 2; i >= 0; i-- {
			ids[i] = uuid.NewString()
			require.NoError(t, repo.CreateLabel(ctx, &model.LabelRecord{ID: ids[i], BatchID: batch, Position: i, ProductCode: "P"}))
		}
		require.NoError(t, repo.UpdateLabelImage(ctx, ids[1], "labels/x.png"))

		labels, err := repo.ListLabels(ctx, batch)
		require.NoError(t, err)
		require.Len(t, labels, 3)
		for i, l := range labels {
			assert.Equal(t, ids[i], l.ID)
		}
		assert.Equal(t, "labels/x.png", labels[1].ImagePath)

		_, err = repo.GetLabel(ctx, uuid.NewString(), ids[0])
		assert.ErrorIs(t, err, storage.ErrNotFound, "label scoped to its batch")
		assert.ErrorIs(t, repo.CreateLabel(ctx, &model.LabelRecord{ID: uuid.NewString(), BatchID: uuid.NewString()}), storage.ErrNotFound)

		removed, err := repo.DeleteLabels(ctx, batch)
		require.NoError(t, err)
		assert.Len(t, removed, 3)
		labels, err = repo.ListLabels(ctx, batch)
		require.NoError(t, err)
		assert.Empty(t, labels)
	})

	t.Run("artifact with same code replaced", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		batch := uuid.NewString()
		require.NoError(t, repo.CreateBatch(ctx, &model.Batch{ID: batch}))

		first := &model.BarcodeArtifact{ID: uuid.NewString(), BatchID: batch, Filename: "ean_1.png", Code: "1", Path: "barcodes/a/ean_1.png"}
		replaced, err := repo.AddArtifact(ctx, first)
		require.NoError(t, err)
		assert.Nil(t, replaced)

		second := &model.BarcodeArtifact{ID: uuid.NewString(), BatchID: batch, Filename: "EAN_1.png", Code: "1", Path: "barcodes/a/EAN_1.png"}
		replaced, err = repo.AddArtifact(ctx, second)
		require.NoError(t, err)
		require.NotNil(t, replaced)
		assert.Equal(t, first.ID, replaced.ID)

		list, err := repo.ListArtifacts(ctx, batch)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, second.ID, list[0].ID)
	})

	t.Run("delete cascades", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		batch := uuid.NewString()
		require.NoError(t, repo.CreateBatch(ctx, &model.Batch{ID: batch, DatasetPath: "datasets/d.csv"}))
		require.NoError(t, repo.CreateLabel(ctx, &model.LabelRecord{ID: uuid.NewString(), BatchID: batch, ImagePath: "labels/l.png"}))
		_, err := repo.AddArtifact(ctx, &model.BarcodeArtifact{ID: uuid.NewString(), BatchID: batch, Code: "9", Path: "barcodes/b.png"})
		require.NoError(t, err)

		paths, err := repo.DeleteBatch(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, []string{"barcodes/b.png", "datasets/d.csv", "labels/l.png"}, paths)

		labels, err := repo.ListLabels(ctx, batch)
		require.NoError(t, err)
		assert.Empty(t, labels)
		_, err = repo.DeleteBatch(ctx, batch)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}
