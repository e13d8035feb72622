package queue

import (
	"context"
	"sync"
)

// Memory is an unbounded in-process queue. Submitters never block; the
// backlog grows until workers drain it.
type Memory struct {
	mu     sync.Mutex
	items  []string
	signal chan struct{}
	done   chan struct{}
	closed bool
}

// NewMemory creates an empty in-memory queue.
func NewMemory() *Memory {
	return &Memory{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Enqueue implements Queue.
func (q *Memory) Enqueue(_ context.Context, id string) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, id)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue implements Queue.
func (q *Memory) Dequeue(ctx context.Context) (string, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return "", ErrClosed
		}
		if len(q.items) > 0 {
			id := q.items[0]
			q.items[0] = ""
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				// Pass the wakeup on so another waiting worker sees the rest.
				select {
				case q.signal <- struct{}{}:
				default:
				}
			}
			return id, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-q.done:
			return "", ErrClosed
		case <-q.signal:
		}
	}
}

// Len implements Queue.
func (q *Memory) Len(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}

// Close implements Queue. It is idempotent.
func (q *Memory) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}

var _ Queue = (*Memory)(nil)
