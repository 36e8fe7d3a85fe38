// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	a2a "github.com/go-a2a/a2a-gateway"
	"github.com/go-a2a/a2a-gateway/server/event"
)

// TaskUpdater publishes the status and artifact events of one turn.
// It guarantees that at most one final status is ever published: after it,
// every update fails with TaskNotUpdatableError.
type TaskUpdater interface {
	// UpdateStatus publishes a status transition. If final is true, or state is
	// terminal, no further updates are allowed.
	UpdateStatus(ctx context.Context, state a2a.TaskState, message *a2a.Message, final bool, metadata map[string]any) error

	// AddArtifact publishes an artifact chunk. append extends the previous chunk
	// with the same artifact ID instead of replacing it.
	AddArtifact(ctx context.Context, artifact *a2a.Artifact, append, lastChunk bool) error

	StartWork(ctx context.Context, metadata map[string]any) error
	Complete(ctx context.Context, message *a2a.Message) error
	Failed(ctx context.Context, message *a2a.Message) error
	RequiresInput(ctx context.Context, message *a2a.Message) error

	// GetTaskID returns the task ID this updater is associated with.
	GetTaskID() string

	// GetContextID returns the context ID this updater is associated with.
	GetContextID() string

	// IsTerminal returns true once a final status was published.
	IsTerminal() bool
}

// TaskUpdaterConfig holds configuration for creating a TaskUpdater.
type TaskUpdaterConfig struct {
	TaskID    string
	ContextID string
	Sink      event.Sink
	// Aggregator, when set, folds every status event before it is published.
	Aggregator *ResultAggregator
}

type defaultTaskUpdater struct {
	taskID     string
	contextID  string
	sink       event.Sink
	aggregator *ResultAggregator

	mu       sync.Mutex
	terminal bool
	state    a2a.TaskState
}

var _ TaskUpdater = (*defaultTaskUpdater)(nil)

// NewTaskUpdater creates a new TaskUpdater with the given configuration.
func NewTaskUpdater(config TaskUpdaterConfig) (TaskUpdater, error) {
	if config.TaskID == "" {
		return nil, fmt.Errorf("task ID cannot be empty")
	}
	if config.ContextID == "" {
		return nil, fmt.Errorf("context ID cannot be empty")
	}
	if config.Sink == nil {
		return nil, fmt.Errorf("event sink cannot be nil")
	}

	return &defaultTaskUpdater{
		taskID:     config.TaskID,
		contextID:  config.ContextID,
		sink:       config.Sink,
		aggregator: config.Aggregator,
		state:      a2a.TaskStateWorking,
	}, nil
}

// UpdateStatus publishes a status transition.
//
// The terminal flag is set before publishing: if the sink rejects a final
// status, the turn still counts as terminated and is not retried.
func (u *defaultTaskUpdater) UpdateStatus(ctx context.Context, state a2a.TaskState, message *a2a.Message, final bool, metadata map[string]any) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.terminal {
		return NewTaskNotUpdatableError(u.taskID, u.state)
	}
	if err := state.Validate(); err != nil {
		return NewTaskUpdaterError("update_status", u.taskID, err)
	}

	if final || a2a.IsTerminalTaskState(state) {
		u.terminal = true
		final = true
	}
	u.state = state

	status := a2a.TaskStatus{
		State:     state,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	var ev event.Event = event.NewTaskStatusUpdateEvent(u.taskID, u.contextID, status, final, metadata)
	if u.aggregator != nil {
		ev = u.aggregator.Process(ev)
	}

	if err := u.sink.Enqueue(ctx, ev); err != nil {
		return NewTaskUpdaterError("update_status", u.taskID, err)
	}
	return nil
}

// AddArtifact publishes an artifact chunk.
func (u *defaultTaskUpdater) AddArtifact(ctx context.Context, artifact *a2a.Artifact, append, lastChunk bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.terminal {
		return NewTaskNotUpdatableError(u.taskID, u.state)
	}
	if artifact == nil {
		return NewTaskUpdaterError("add_artifact", u.taskID, fmt.Errorf("artifact cannot be nil"))
	}
	if err := artifact.Validate(); err != nil {
		return NewTaskUpdaterError("add_artifact", u.taskID, err)
	}

	ev := event.NewTaskArtifactUpdateEvent(u.taskID, u.contextID, artifact, append, lastChunk)
	if err := u.sink.Enqueue(ctx, ev); err != nil {
		return NewTaskUpdaterError("add_artifact", u.taskID, err)
	}
	return nil
}

// StartWork publishes a non-final working status.
func (u *defaultTaskUpdater) StartWork(ctx context.Context, metadata map[string]any) error {
	return u.UpdateStatus(ctx, a2a.TaskStateWorking, nil, false, metadata)
}

// Complete marks the task as completed.
func (u *defaultTaskUpdater) Complete(ctx context.Context, message *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.TaskStateCompleted, message, true, nil)
}

// Failed marks the task as failed.
func (u *defaultTaskUpdater) Failed(ctx context.Context, message *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.TaskStateFailed, message, true, nil)
}

// RequiresInput ends the turn waiting for the user.
func (u *defaultTaskUpdater) RequiresInput(ctx context.Context, message *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.TaskStateInputRequired, message, true, nil)
}

// GetTaskID returns the task ID this updater is associated with.
func (u *defaultTaskUpdater) GetTaskID() string {
	return u.taskID
}

// GetContextID returns the context ID this updater is associated with.
func (u *defaultTaskUpdater) GetContextID() string {
	return u.contextID
}

// IsTerminal returns true if a final status was published.
func (u *defaultTaskUpdater) IsTerminal() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.terminal
}
