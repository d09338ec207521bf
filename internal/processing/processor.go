// Package processing runs several batches through ingestion at once on a
// fixed pool of goroutines. Each batch writes only under its own namespace,
// so workers share nothing but the repository and blob store.
package processing

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/ingest"
)

// BatchProcessor is the ingestion entry point driven by the pool.
type BatchProcessor interface {
	Process(ctx context.Context, batchID string) (*ingest.Result, error)
}

// Job identifies one batch to process. Index is echoed in the Outcome.
type Job struct {
	Index   int
	BatchID string
}

// Outcome is the result of one Job.
type Outcome struct {
	Job    Job
	Result *ingest.Result
	Err    error
}

// Pool consumes Jobs with a fixed number of workers.
type Pool struct {
	svc     BatchProcessor
	queue   chan Job
	results chan Outcome
	workers int
	wg      sync.WaitGroup
	logger  *zap.Logger
}

// New builds a Pool with queue capacity tied to worker count.
func New(svc BatchProcessor, workers int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		svc:     svc,
		queue:   make(chan Job, workers*4),
		results: make(chan Outcome, workers),
		workers: workers,
		logger:  logger.Named("pool"),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	go func() {
		p.wg.Wait()
		close(p.results)
	}()
}

// Submit queues a job, blocking while the queue is full.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	select {
	case p.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs. Results is closed once every queued job is done.
func (p *Pool) Close() {
	close(p.queue)
}

// Results delivers one Outcome per processed job.
func (p *Pool) Results() <-chan Outcome {
	return p.results
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for job := range p.queue {
		out := Outcome{Job: job}
		if err := ctx.Err(); err != nil {
			out.Err = err
		} else {
			out.Result, out.Err = p.svc.Process(ctx, job.BatchID)
		}
		if out.Err != nil {
			p.logger.Warn("batch failed", zap.String("batch", job.BatchID), zap.Error(out.Err))
		}
		p.results <- out
	}
}

// Run processes every batch with the given concurrency and returns the
// outcomes in input order.
func Run(ctx context.Context, svc BatchProcessor, workers int, batchIDs []string, logger *zap.Logger) []Outcome {
	p := New(svc, workers, logger)
	p.Start(ctx)
	go func() {
		defer p.Close()
		for i, id := range batchIDs {
			if err := p.Submit(ctx, Job{Index: i, BatchID: id}); err != nil {
				return
			}
		}
	}()

	outcomes := make([]Outcome, len(batchIDs))
	seen := make([]bool, len(batchIDs))
	for out := range p.Results() {
		outcomes[out.Job.Index] = out
		seen[out.Job.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			outcomes[i] = Outcome{Job: Job{Index: i, BatchID: batchIDs[i]}, Err: ctx.Err()}
		}
	}
	return outcomes
}
