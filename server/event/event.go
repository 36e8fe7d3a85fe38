// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package event provides the push-protocol events emitted while a turn runs and
// the bounded queue that carries them from the executor to the transport.
package event

import (
	"context"
	"fmt"

	a2a "github.com/go-a2a/a2a-gateway"
)

// Event kinds as they appear on the wire.
const (
	KindStatusUpdate   = "status-update"
	KindArtifactUpdate = "artifact-update"
)

// Event represents a unified interface for all push-protocol events.
type Event interface {
	// EventType returns the wire kind of the event.
	EventType() string

	// GetTaskID returns the task the event belongs to.
	GetTaskID() string

	// Validate ensures the event is in a valid state.
	Validate() error

	// String returns a string representation of the event.
	String() string
}

// TaskStatusUpdateEvent represents a task status update event.
type TaskStatusUpdateEvent struct {
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Kind      string         `json:"kind"`
	Status    a2a.TaskStatus `json:"status"`
	Final     bool           `json:"final"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

var _ Event = (*TaskStatusUpdateEvent)(nil)

// EventType returns the event type for TaskStatusUpdateEvent.
func (e *TaskStatusUpdateEvent) EventType() string {
	return KindStatusUpdate
}

// GetTaskID returns the task ID.
func (e *TaskStatusUpdateEvent) GetTaskID() string {
	return e.TaskID
}

// Validate ensures the TaskStatusUpdateEvent is valid.
func (e *TaskStatusUpdateEvent) Validate() error {
	if e.TaskID == "" {
		return fmt.Errorf("task status update event task ID cannot be empty")
	}
	return e.Status.Validate()
}

// String returns a string representation of the TaskStatusUpdateEvent.
func (e *TaskStatusUpdateEvent) String() string {
	return fmt.Sprintf("TaskStatusUpdateEvent{TaskID: %s, Status: %s, Final: %t}",
		e.TaskID, e.Status.State, e.Final)
}

// TaskArtifactUpdateEvent represents a task artifact update event.
type TaskArtifactUpdateEvent struct {
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Kind      string         `json:"kind"`
	Artifact  *a2a.Artifact  `json:"artifact"`
	Append    bool           `json:"append"`
	LastChunk bool           `json:"lastChunk"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

var _ Event = (*TaskArtifactUpdateEvent)(nil)

// EventType returns the event type for TaskArtifactUpdateEvent.
func (e *TaskArtifactUpdateEvent) EventType() string {
	return KindArtifactUpdate
}

// GetTaskID returns the task ID.
func (e *TaskArtifactUpdateEvent) GetTaskID() string {
	return e.TaskID
}

// Validate ensures the TaskArtifactUpdateEvent is valid.
func (e *TaskArtifactUpdateEvent) Validate() error {
	if e.TaskID == "" {
		return fmt.Errorf("task artifact update event task ID cannot be empty")
	}
	if e.Artifact == nil {
		return fmt.Errorf("task artifact update event artifact cannot be nil")
	}
	return e.Artifact.Validate()
}

// String returns a string representation of the TaskArtifactUpdateEvent.
func (e *TaskArtifactUpdateEvent) String() string {
	artifactID := "nil"
	if e.Artifact != nil {
		artifactID = e.Artifact.ArtifactID
	}
	return fmt.Sprintf("TaskArtifactUpdateEvent{TaskID: %s, Artifact: %s, Append: %t, LastChunk: %t}",
		e.TaskID, artifactID, e.Append, e.LastChunk)
}

// NewTaskStatusUpdateEvent creates a new TaskStatusUpdateEvent.
func NewTaskStatusUpdateEvent(taskID, contextID string, status a2a.TaskStatus, final bool, metadata map[string]any) *TaskStatusUpdateEvent {
	return &TaskStatusUpdateEvent{
		TaskID:    taskID,
		ContextID: contextID,
		Kind:      KindStatusUpdate,
		Status:    status,
		Final:     final,
		Metadata:  metadata,
	}
}

// NewTaskArtifactUpdateEvent creates a new TaskArtifactUpdateEvent.
func NewTaskArtifactUpdateEvent(taskID, contextID string, artifact *a2a.Artifact, append, lastChunk bool) *TaskArtifactUpdateEvent {
	return &TaskArtifactUpdateEvent{
		TaskID:    taskID,
		ContextID: contextID,
		Kind:      KindArtifactUpdate,
		Artifact:  artifact,
		Append:    append,
		LastChunk: lastChunk,
	}
}

// IsFinalEvent determines if an event ends the event flow of a turn.
// Only status updates flagged final do.
func IsFinalEvent(ev Event) bool {
	e, ok := ev.(*TaskStatusUpdateEvent)
	return ok && e.Final
}

// Sink accepts the events of one turn in order.
type Sink interface {
	Enqueue(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev Event) error

// Enqueue calls f.
func (f SinkFunc) Enqueue(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}
