package processing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dharsanguruparan/LabelDrop/internal/ingest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeService struct {
	mu      sync.Mutex
	seen    []string
	active  atomic.Int32
	peak    atomic.Int32
	delay   time.Duration
	failFor string
}

func (f *fakeService) Process(ctx context.Context, batchID string) (*ingest.Result, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	f.mu.Lock()
	f.seen = append(f.seen, batchID)
	f.mu.Unlock()
	if batchID == f.failFor {
		return nil, errors.New("boom")
	}
	return &ingest.Result{BatchID: batchID, Rendered: 1}, nil
}

func TestRunKeepsInputOrder(t *testing.T) {
	svc := &fakeService{delay: 5 * time.Millisecond, failFor: "b3"}
	ids := []string{"b1", "b2", "b3", "b4", "b5", "b6"}

	outcomes := Run(context.Background(), svc, 3, ids, nil)
	require.Len(t, outcomes, len(ids))
	for i, out := range outcomes {
		assert.Equal(t, ids[i], out.Job.BatchID)
		if ids[i] == "b3" {
			assert.EqualError(t, out.Err, "boom")
			continue
		}
		require.NoError(t, out.Err)
		assert.Equal(t, ids[i], out.Result.BatchID)
	}
	assert.Len(t, svc.seen, len(ids))
	assert.LessOrEqual(t, svc.peak.Load(), int32(3))
}

func TestRunSingleWorkerIsSequential(t *testing.T) {
	svc := &fakeService{delay: time.Millisecond}
	Run(context.Background(), svc, 0, []string{"a", "b", "c"}, nil)
	assert.Equal(t, int32(1), svc.peak.Load())
	assert.Equal(t, []string{"a", "b", "c"}, svc.seen)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcomes := Run(ctx, &fakeService{delay: time.Second}, 2, []string{"a", "b"}, nil)
	require.Len(t, outcomes, 2)
	for _, out := range outcomes {
		assert.ErrorIs(t, out.Err, context.Canceled)
	}
}
