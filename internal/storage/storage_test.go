package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/LabelDrop/internal/model"
)

func TestMemoryStoreBatches(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	older := &model.Batch{ID: "b1", CreatedAt: time.Now().Add(-time.Hour)}
	newer := &model.Batch{ID: "b2"}
	require.NoError(t, m.CreateBatch(ctx, older))
	require.NoError(t, m.CreateBatch(ctx, newer))

	list, err := m.ListBatches(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b2", list[0].ID)

	require.NoError(t, m.MarkProcessed(ctx, "b1"))
	got, err := m.GetBatch(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, got.Processed)

	_, err = m.GetBatch(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.MarkProcessed(ctx, "nope"), ErrNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.CreateBatch(ctx, &model.Batch{ID: "b1"}))

	got, _ := m.GetBatch(ctx, "b1")
	got.Processed = true

	again, _ := m.GetBatch(ctx, "b1")
	assert.False(t, again.Processed)
}

func TestMemoryStoreLabels(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.CreateBatch(ctx, &model.Batch{ID: "b1"}))
	require.NoError(t, m.CreateBatch(ctx, &model.Batch{ID: "b2"}))

	for i, id := range []string{"l3", "l1", "l2"} {
		require.NoError(t, m.CreateLabel(ctx, &model.LabelRecord{ID: id, BatchID: "b1", Position: 2 - i}))
	}
	require.NoError(t, m.CreateLabel(ctx, &model.LabelRecord{ID: "other", BatchID: "b2"}))
	assert.ErrorIs(t, m.CreateLabel(ctx, &model.LabelRecord{ID: "x", BatchID: "missing"}), ErrNotFound)

	require.NoError(t, m.UpdateLabelImage(ctx, "l1", "labels/b1/label_l1.png"))

	labels, err := m.ListLabels(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, labels, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{labels[0].Position, labels[1].Position, labels[2].Position})

	got, err := m.GetLabel(ctx, "b1", "l1")
	require.NoError(t, err)
	assert.Equal(t, "labels/b1/label_l1.png", got.ImagePath)
	_, err = m.GetLabel(ctx, "b2", "l1")
	assert.ErrorIs(t, err, ErrNotFound)

	removed, err := m.DeleteLabels(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, removed, 3)
	left, _ := m.ListLabels(ctx, "b2")
	assert.Len(t, left, 1)
}

func TestMemoryStoreArtifactsReplaceSameCode(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.CreateBatch(ctx, &model.Batch{ID: "b1"}))

	replaced, err := m.AddArtifact(ctx, &model.BarcodeArtifact{ID: "a1", BatchID: "b1", Code: "111", Path: "p1"})
	require.NoError(t, err)
	assert.Nil(t, replaced)
	_, err = m.AddArtifact(ctx, &model.BarcodeArtifact{ID: "a2", BatchID: "b1", Code: "222", Path: "p2"})
	require.NoError(t, err)

	replaced, err = m.AddArtifact(ctx, &model.BarcodeArtifact{ID: "a3", BatchID: "b1", Code: "111", Path: "p3"})
	require.NoError(t, err)
	require.NotNil(t, replaced)
	assert.Equal(t, "a1", replaced.ID)

	list, err := m.ListArtifacts(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a2", list[0].ID)
	assert.Equal(t, "a3", list[1].ID)
}

func TestMemoryStoreDeleteBatchCascades(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.CreateBatch(ctx, &model.Batch{ID: "b1", DatasetPath: "datasets/b1.csv"}))
	require.NoError(t, m.CreateLabel(ctx, &model.LabelRecord{ID: "l1", BatchID: "b1", ImagePath: "labels/b1/l1.png"}))
	_, err := m.AddArtifact(ctx, &model.BarcodeArtifact{ID: "a1", BatchID: "b1", Code: "1", Path: "barcodes/b1/ean_1.png"})
	require.NoError(t, err)

	paths, err := m.DeleteBatch(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, []string{"barcodes/b1/ean_1.png", "datasets/b1.csv", "labels/b1/l1.png"}, paths)

	labels, _ := m.ListLabels(ctx, "b1")
	assert.Empty(t, labels)
	arts, _ := m.ListArtifacts(ctx, "b1")
	assert.Empty(t, arts)
	_, err = m.DeleteBatch(ctx, "b1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalBlobs(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	blobs, err := NewLocalBlobs(root, nil)
	require.NoError(t, err)

	t.Run("put overwrites", func(t *testing.T) {
		require.NoError(t, blobs.Put(ctx, "labels/b1/label_1.png", []byte("first")))
		require.NoError(t, blobs.Put(ctx, "labels/b1/label_1.png", []byte("second")))

		data, err := blobs.Get(ctx, "labels/b1/label_1.png")
		require.NoError(t, err)
		assert.Equal(t, "second", string(data))

		entries, err := os.ReadDir(filepath.Join(root, "labels", "b1"))
		require.NoError(t, err)
		assert.Len(t, entries, 1, "no temp files left behind")
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, blobs.Delete(ctx, "labels/b1/label_1.png"))
		require.NoError(t, blobs.Delete(ctx, "labels/b1/label_1.png"))
		_, err := blobs.Get(ctx, "labels/b1/label_1.png")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("rejects traversal", func(t *testing.T) {
		assert.Error(t, blobs.Put(ctx, "../escape.txt", []byte("x")))
		_, err := blobs.Get(ctx, "labels/../../etc/passwd")
		assert.Error(t, err)
		assert.Error(t, blobs.Delete(ctx, ""))
		assert.Error(t, blobs.Put(ctx, `datasets\..\..\escape.txt`, []byte("x")))
	})

	t.Run("allows double dots inside a name", func(t *testing.T) {
		p := DatasetPath("b1", "stock..v2.csv")
		require.NoError(t, blobs.Put(ctx, p, []byte("rows")))
		got, err := blobs.Get(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, []byte("rows"), got)
	})
}

func TestBlobPaths(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"dataset", DatasetPath("b1", "labels.csv"), "datasets/b1/labels.csv"},
		{"dataset windows path", DatasetPath("b1", `C:\exports\labels.csv`), "datasets/b1/labels.csv"},
		{"dataset traversal", DatasetPath("b1", "../../etc/passwd"), "datasets/b1/passwd"},
		{"dataset empty name", DatasetPath("b1", ""), "datasets/b1/dataset.csv"},
		{"artifact", ArtifactPath("b1", "EAN_123.png"), "barcodes/b1/EAN_123.png"},
		{"artifact dots", ArtifactPath("b1", ".."), "barcodes/b1/barcode.png"},
		{"label", LabelImagePath("b1", "l9"), "labels/b1/label_l9.png"},
		{"export", ExportPath("b1", ".zip"), "exports/b1.zip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}
