// Package queue holds job ids waiting for a worker.
//
// The orchestrator pushes the id of every accepted job and workers block on
// Dequeue. Job state itself never travels through the queue; only ids do.
package queue

import (
	"context"
	"errors"
)

// ErrClosed is returned by Enqueue and Dequeue after Close.
var ErrClosed = errors.New("queue closed")

// Queue is a FIFO of job ids shared by all workers.
type Queue interface {
	// Enqueue appends id. It never blocks on consumer availability.
	Enqueue(ctx context.Context, id string) error
	// Dequeue blocks until an id is available, ctx is done, or the queue closes.
	Dequeue(ctx context.Context) (string, error)
	// Len returns the number of ids waiting.
	Len(ctx context.Context) (int, error)
	// Close releases resources and wakes blocked consumers with ErrClosed.
	Close() error
}
