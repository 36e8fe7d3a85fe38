// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"sync"

	a2a "github.com/go-a2a/a2a-gateway"
	"github.com/go-a2a/a2a-gateway/server/event"
)

// statePriority ranks the states a turn can settle in. A higher rank wins over
// a lower one; failed outranks everything and is never replaced. The two
// awaiting states share a rank, so the later of them holds.
var statePriority = map[a2a.TaskState]int{
	a2a.TaskStateWorking:       0,
	a2a.TaskStateInputRequired: 1,
	a2a.TaskStateAuthRequired:  1,
	a2a.TaskStateCompleted:     2,
	a2a.TaskStateFailed:        3,
}

// ResultAggregator folds the status events of one turn into a single task state.
//
// The aggregator starts in working. Artifact events are ignored. A status event
// is accepted when its state ranks at least as high as the current one, so
// failed dominates and, once reached, is sticky.
type ResultAggregator struct {
	mu      sync.Mutex
	state   a2a.TaskState
	message *a2a.Message
}

// NewResultAggregator returns an aggregator in the working state.
func NewResultAggregator() *ResultAggregator {
	return &ResultAggregator{state: a2a.TaskStateWorking}
}

// Process folds ev into the aggregate and returns the event to forward
// downstream.
//
// A non-final status that is not failed is forwarded as working, so a soft
// awaiting signal observed mid-stream does not end the outward event flow.
// The returned event is a copy; ev is never modified.
func (a *ResultAggregator) Process(ev event.Event) event.Event {
	status, ok := ev.(*event.TaskStatusUpdateEvent)
	if !ok {
		return ev
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	incoming := status.Status.State
	if a.state != a2a.TaskStateFailed {
		if rank, known := statePriority[incoming]; known && rank >= statePriority[a.state] {
			a.state = incoming
			a.message = status.Status.Message
		}
	}

	if status.Final || incoming == a2a.TaskStateFailed || incoming == a2a.TaskStateWorking {
		return status
	}

	forwarded := *status
	forwarded.Status.State = a2a.TaskStateWorking
	return &forwarded
}

// State returns the current aggregate state.
func (a *ResultAggregator) State() a2a.TaskState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// StatusMessage returns the message attached to the most recent accepted
// transition, or nil.
func (a *ResultAggregator) StatusMessage() *a2a.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.message
}

// Status returns the aggregate as a task status.
func (a *ResultAggregator) Status() a2a.TaskStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a2a.TaskStatus{State: a.state, Message: a.message}
}
