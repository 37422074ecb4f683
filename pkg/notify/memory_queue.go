package notify

import (
	"context"
	"sync"
)

// MemoryQueue is a bounded in-process Queue. Events are lost on restart.
type MemoryQueue struct {
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// NewMemoryQueue creates a queue buffering up to size events
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1
	}
	return &MemoryQueue{
		events: make(chan Event, size),
		done:   make(chan struct{}),
	}
}

// Enqueue adds an event without blocking
func (q *MemoryQueue) Enqueue(ctx context.Context, event Event) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Dequeue waits for the next event
func (q *MemoryQueue) Dequeue(ctx context.Context) (Event, error) {
	select {
	case event := <-q.events:
		return event, nil
	case <-q.done:
		return Event{}, ErrQueueClosed
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Close stops the queue; pending events are dropped
func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}
