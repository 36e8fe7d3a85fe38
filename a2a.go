// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package a2a provides the shared data model of the gateway: tasks, messages and
// artifacts exchanged over the Agent-to-Agent push protocol, plus the error taxonomy
// used by both streaming bridges.
package a2a

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Version is the version of the A2A protocol spoken by the gateway.
const Version = "0.2.5"

// TaskState represents the state of a Task.
type TaskState string

const (
	// TaskStateSubmitted indicates the task has been received but no turn has started.
	TaskStateSubmitted TaskState = "submitted"

	// TaskStateWorking indicates a turn is in progress.
	TaskStateWorking TaskState = "working"

	// TaskStateInputRequired indicates the assistant is waiting for more user input.
	TaskStateInputRequired TaskState = "input-required"

	// TaskStateAuthRequired indicates the assistant is waiting for the caller to authenticate.
	TaskStateAuthRequired TaskState = "auth-required"

	// TaskStateCompleted indicates the task has been completed.
	TaskStateCompleted TaskState = "completed"

	// TaskStateFailed indicates the task has failed.
	TaskStateFailed TaskState = "failed"

	// TaskStateCanceled indicates the task has been canceled.
	TaskStateCanceled TaskState = "canceled"

	// TaskStateRejected indicates the task was rejected by the agent.
	TaskStateRejected TaskState = "rejected"
)

// IsTerminalTaskState reports whether no further transition is allowed out of state.
func IsTerminalTaskState(state TaskState) bool {
	switch state {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected:
		return true
	default:
		return false
	}
}

// IsInterruptedTaskState reports whether state is one of the re-enterable
// "awaiting" holds.
func IsInterruptedTaskState(state TaskState) bool {
	return state == TaskStateInputRequired || state == TaskStateAuthRequired
}

// Validate reports whether s is a known task state.
func (s TaskState) Validate() error {
	switch s {
	case TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired, TaskStateAuthRequired,
		TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected:
		return nil
	default:
		return fmt.Errorf("invalid task state: %q", string(s))
	}
}

// TaskStatus is the status attached to the last state transition of a task.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Validate ensures the status carries a known state.
func (s TaskStatus) Validate() error {
	return s.State.Validate()
}

// MessageText returns the rendered text of the status message, if any.
func (s TaskStatus) MessageText() string {
	if s.Message == nil {
		return ""
	}
	return s.Message.Text()
}

// Task identifies one push-protocol unit of work.
type Task struct {
	ID        string         `json:"id"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Kind      string         `json:"kind"`
	CreatedAt time.Time      `json:"createdAt,omitzero"`
	UpdatedAt time.Time      `json:"updatedAt,omitzero"`
}

// KindTask is the discriminator value of a serialized Task.
const KindTask = "task"

// NewTask returns a submitted task. Empty ids are generated.
func NewTask(taskID, contextID string) *Task {
	if taskID == "" {
		taskID = uuid.NewString()
	}
	if contextID == "" {
		contextID = uuid.NewString()
	}
	now := time.Now().UTC()
	return &Task{
		ID:        taskID,
		ContextID: contextID,
		Status: TaskStatus{
			State:     TaskStateSubmitted,
			Timestamp: now,
		},
		Kind:      KindTask,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate ensures the task is well formed.
func (t *Task) Validate() error {
	if t == nil {
		return errors.New("task cannot be nil")
	}
	if t.ID == "" {
		return errors.New("task ID cannot be empty")
	}
	if t.ContextID == "" {
		return errors.New("task context ID cannot be empty")
	}
	return t.Status.Validate()
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Metadata = cloneMetadata(t.Metadata)
	if t.Status.Message != nil {
		c.Status.Message = t.Status.Message.Clone()
	}
	return &c
}

// TaskNotFoundError reports a lookup of an unknown task id.
type TaskNotFoundError struct {
	TaskID string
}

// Error implements the error interface.
func (e TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.TaskID)
}

func cloneMetadata(md map[string]any) map[string]any {
	if md == nil {
		return nil
	}
	c := make(map[string]any, len(md))
	for k, v := range md {
		c[k] = v
	}
	return c
}
