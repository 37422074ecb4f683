package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrQueueFull is returned when the in-memory buffer has no room
	ErrQueueFull = errors.New("notification queue is full")
	// ErrQueueClosed is returned after Close
	ErrQueueClosed = errors.New("notification queue is closed")
)

// Event is a notification waiting for delivery
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Attempts   int             `json:"attempts"`
	Data       json.RawMessage `json:"data"`
}

// Queue carries events from publishers to the dispatcher worker
type Queue interface {
	Enqueue(ctx context.Context, event Event) error
	// Dequeue blocks until an event is available or ctx is done
	Dequeue(ctx context.Context) (Event, error)
	Close() error
}
