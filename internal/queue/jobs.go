// Package queue defines the background tasks exchanged between the API and
// the render worker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/LabelDrop/internal/ingest"
)

const (
	// RenderBatchTask is scheduled when a batch is uploaded or regenerated.
	RenderBatchTask = "batch:render"
)

// RenderPayload names the batch the worker should (re)process.
type RenderPayload struct {
	BatchID string `json:"batch_id"`
}

// NewRenderTask builds the task for a batch.
func NewRenderTask(batchID string) (*asynq.Task, error) {
	data, err := json.Marshal(RenderPayload{BatchID: batchID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	// At most one pending render per batch.
	return asynq.NewTask(RenderBatchTask, data, asynq.TaskID("render:"+batchID)), nil
}

// ParseRenderPayload decodes a task payload.
func ParseRenderPayload(task *asynq.Task) (RenderPayload, error) {
	var payload RenderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode payload: %w", err)
	}
	if payload.BatchID == "" {
		return payload, fmt.Errorf("decode payload: missing batch id")
	}
	return payload, nil
}

// Enqueuer is the subset of *asynq.Client used to schedule work.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueueRender enqueues a render job for a batch.
func EnqueueRender(ctx context.Context, client Enqueuer, batchID string) error {
	task, err := NewRenderTask(batchID)
	if err != nil {
		return err
	}
	_, err = client.EnqueueContext(ctx, task, asynq.MaxRetry(5))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue render task: %w", err)
	}
	return nil
}

// Dispatcher hands batches to the render worker instead of processing them
// in the caller.
type Dispatcher struct {
	Client Enqueuer
}

// Dispatch enqueues a render and always returns a nil result.
func (d Dispatcher) Dispatch(ctx context.Context, batchID string) (*ingest.Result, error) {
	return nil, EnqueueRender(ctx, d.Client, batchID)
}
