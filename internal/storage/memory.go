package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dharsanguruparan/LabelDrop/internal/model"
)

// MemoryStore is an in-memory Repository guarded by an RWMutex. Values are
// copied in and out so callers never share state with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	batches   map[string]*model.Batch
	labels    map[string]*model.LabelRecord
	artifacts map[string]*model.BarcodeArtifact
	// seq orders artifacts that share a timestamp.
	seq      int
	artOrder map[string]int
}

var _ Repository = (*MemoryStore)(nil)

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		batches:   make(map[string]*model.Batch),
		labels:    make(map[string]*model.LabelRecord),
		artifacts: make(map[string]*model.BarcodeArtifact),
		artOrder:  make(map[string]int),
	}
}

// CreateBatch inserts a batch.
func (m *MemoryStore) CreateBatch(_ context.Context, batch *model.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}
	batch.UpdatedAt = now
	// Store a copy: the caller keeps its pointer and may go on mutating it.
	b := *batch
	m.batches[b.ID] = &b
	return nil
}

// GetBatch returns a batch copy.
func (m *MemoryStore) GetBatch(_ context.Context, id string) (*model.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, ErrNotFound
	}
	// Hand out a copy so readers cannot change the stored batch without the lock.
	out := *b
	return &out, nil
}

// ListBatches returns batches newest first.
func (m *MemoryStore) ListBatches(_ context.Context) ([]model.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Map iteration order is random, so sort after collecting.
	out := make([]model.Batch, 0, len(m.batches))
	for _, b := range m.batches {
		out = append(out, *b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// MarkProcessed flags a batch as processed.
func (m *MemoryStore) MarkProcessed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return ErrNotFound
	}
	b.Processed = true
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteBatch removes a batch and everything scoped to it.
func (m *MemoryStore) DeleteBatch(_ context.Context, id string) ([]string, error) {
	// One write lock covers the whole cascade, so nobody observes labels or
	// artifacts whose batch is already gone.
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, ErrNotFound
	}
	var paths []string
	if b.DatasetPath != "" {
		paths = append(paths, b.DatasetPath)
	}
	for lid, l := range m.labels {
		if l.BatchID == id {
			if l.ImagePath != "" {
				paths = append(paths, l.ImagePath)
			}
			delete(m.labels, lid)
		}
	}
	for aid, a := range m.artifacts {
		if a.BatchID == id {
			paths = append(paths, a.Path)
			delete(m.artifacts, aid)
			delete(m.artOrder, aid)
		}
	}
	delete(m.batches, id)
	sort.Strings(paths)
	return paths, nil
}

// AddArtifact stores an artifact, replacing one with the same code.
func (m *MemoryStore) AddArtifact(_ context.Context, artifact *model.BarcodeArtifact) (*model.BarcodeArtifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.batches[artifact.BatchID]; !ok {
		return nil, ErrNotFound
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}
	// At most one artifact per (batch, code): the newcomer replaces it and the
	// old one is returned so its blob can be removed.
	var replaced *model.BarcodeArtifact
	for id, a := range m.artifacts {
		if a.BatchID == artifact.BatchID && a.Code == artifact.Code {
			old := *a
			replaced = &old
			delete(m.artifacts, id)
			delete(m.artOrder, id)
			break
		}
	}
	a := *artifact
	// seq gives a stable upload order even when CreatedAt values collide.
	m.seq++
	m.artifacts[a.ID] = &a
	m.artOrder[a.ID] = m.seq
	return replaced, nil
}

// ListArtifacts returns a batch's artifacts oldest first.
func (m *MemoryStore) ListArtifacts(_ context.Context, batchID string) ([]model.BarcodeArtifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.BarcodeArtifact
	for _, a := range m.artifacts {
		if a.BatchID == batchID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return m.artOrder[out[i].ID] < m.artOrder[out[j].ID]
	})
	return out, nil
}

// CreateLabel inserts a label record.
func (m *MemoryStore) CreateLabel(_ context.Context, label *model.LabelRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.batches[label.BatchID]; !ok {
		return ErrNotFound
	}
	if label.CreatedAt.IsZero() {
		label.CreatedAt = time.Now().UTC()
	}
	l := *label
	m.labels[l.ID] = &l
	return nil
}

// GetLabel returns one label of a batch.
func (m *MemoryStore) GetLabel(_ context.Context, batchID, id string) (*model.LabelRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.labels[id]
	if !ok || l.BatchID != batchID {
		return nil, ErrNotFound
	}
	out := *l
	return &out, nil
}

// UpdateLabelImage records where a label's rendered image is stored.
func (m *MemoryStore) UpdateLabelImage(_ context.Context, id, imagePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.labels[id]
	if !ok {
		return ErrNotFound
	}
	l.ImagePath = imagePath
	return nil
}

// ListLabels returns a batch's labels in row order.
func (m *MemoryStore) ListLabels(_ context.Context, batchID string) ([]model.LabelRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.labelsOf(batchID)
	return out, nil
}

// DeleteLabels removes every label of a batch.
func (m *MemoryStore) DeleteLabels(_ context.Context, batchID string) ([]model.LabelRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.labelsOf(batchID)
	for _, l := range out {
		delete(m.labels, l.ID)
	}
	return out, nil
}

// labelsOf copies a batch's labels in Position order. Callers hold m.mu.
func (m *MemoryStore) labelsOf(batchID string) []model.LabelRecord {
	var out []model.LabelRecord
	for _, l := range m.labels {
		if l.BatchID == batchID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}
