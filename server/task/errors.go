// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"errors"
	"fmt"

	a2a "github.com/go-a2a/a2a-gateway"
)

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("store is closed")

// StoreError represents a failure of the conversation state backend.
// It matches a2a.ErrStorageUnavailable.
type StoreError struct {
	Op  string
	Key string
	Err error
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, key string, err error) *StoreError {
	return &StoreError{
		Op:  op,
		Key: key,
		Err: err,
	}
}

// Error returns the error message.
func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s operation failed for %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a2a.ErrStorageUnavailable.
func (e *StoreError) Is(target error) bool {
	return target == a2a.ErrStorageUnavailable
}

// TaskNotUpdatableError represents an error when attempting to update a task in a terminal state.
type TaskNotUpdatableError struct {
	TaskID string
	State  a2a.TaskState
}

// NewTaskNotUpdatableError creates a new TaskNotUpdatableError.
func NewTaskNotUpdatableError(taskID string, state a2a.TaskState) TaskNotUpdatableError {
	return TaskNotUpdatableError{
		TaskID: taskID,
		State:  state,
	}
}

// Error returns the error message.
func (e TaskNotUpdatableError) Error() string {
	return fmt.Sprintf("task %s in state %s cannot be updated", e.TaskID, e.State)
}

// TaskUpdaterError represents an error from the task updater.
type TaskUpdaterError struct {
	Operation string
	TaskID    string
	Err       error
}

// NewTaskUpdaterError creates a new TaskUpdaterError.
func NewTaskUpdaterError(operation, taskID string, err error) TaskUpdaterError {
	return TaskUpdaterError{
		Operation: operation,
		TaskID:    taskID,
		Err:       err,
	}
}

// Error returns the error message.
func (e TaskUpdaterError) Error() string {
	return fmt.Sprintf("task updater %s operation failed for task %s: %v", e.Operation, e.TaskID, e.Err)
}

// Unwrap returns the underlying error.
func (e TaskUpdaterError) Unwrap() error {
	return e.Err
}
