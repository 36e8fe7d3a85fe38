// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxQueueSize is the default maximum queue size.
const DefaultMaxQueueSize = 64

// EventQueue is a bounded FIFO connecting the producer of a turn (the executor)
// to its consumer (the transport). A full queue blocks the producer, so a slow
// consumer stalls upstream consumption instead of growing memory.
type EventQueue struct {
	events    chan Event
	maxSize   int
	done      chan struct{}
	closeOnce sync.Once
}

var _ Sink = (*EventQueue)(nil)

// NewEventQueue creates a new event queue with the specified maximum size.
// If maxSize is 0, DefaultMaxQueueSize is used.
func NewEventQueue(maxSize int) (*EventQueue, error) {
	if maxSize < 0 {
		return nil, ErrInvalidQueueSize
	}
	if maxSize == 0 {
		maxSize = DefaultMaxQueueSize
	}

	return &EventQueue{
		events:  make(chan Event, maxSize),
		maxSize: maxSize,
		done:    make(chan struct{}),
	}, nil
}

// Enqueue adds an event to the queue, blocking while the queue is full.
// Returns ErrQueueClosed if the queue is closed.
func (q *EventQueue) Enqueue(ctx context.Context, ev Event) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrQueueClosed
	case q.events <- ev:
		return nil
	}
}

// Dequeue retrieves the next event in production order.
//
// It blocks until an event is available, ctx is canceled, or timeout elapses
// (ErrDequeueTimeout). A non-positive timeout waits forever. Once the queue is
// closed, buffered events are still returned before ErrQueueClosed.
func (q *EventQueue) Dequeue(ctx context.Context, timeout time.Duration) (Event, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case ev := <-q.events:
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-expired:
		return nil, ErrDequeueTimeout
	case <-q.done:
		select {
		case ev := <-q.events:
			return ev, nil
		default:
			return nil, ErrQueueClosed
		}
	}
}

// Close closes the queue. Further enqueues fail; buffered events remain readable.
// Close is idempotent.
func (q *EventQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}

// IsClosed returns true if the queue is closed.
func (q *EventQueue) IsClosed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

// Size returns the current number of buffered events.
func (q *EventQueue) Size() int {
	return len(q.events)
}

// Capacity returns the maximum capacity of the queue.
func (q *EventQueue) Capacity() int {
	return q.maxSize
}
