// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package task holds the conversation state of the gateway (tasks and the
// context to backend session mapping), the status aggregator folding the events
// of a turn, and the updater publishing those events.
package task

import (
	"context"

	a2a "github.com/go-a2a/a2a-gateway"
)

// Store defines the interface for conversation state persistence.
// This interface abstracts the storage mechanism to allow different
// implementations (embedded SQL, networked SQL, key/value, in-memory) while
// keeping identical semantics: per-key last-write-wins, no transactions
// spanning several keys.
type Store interface {
	// GetTask retrieves a task by its ID.
	// Returns a2a.TaskNotFoundError if the task doesn't exist.
	GetTask(ctx context.Context, taskID string) (*a2a.Task, error)

	// PutTask persists a task. If the task already exists, it is replaced.
	PutTask(ctx context.Context, task *a2a.Task) error

	// GetContextSession returns the backend session bound to a push-protocol
	// context. The bool is false when no mapping exists.
	GetContextSession(ctx context.Context, contextID string) (string, bool, error)

	// PutContextSession binds contextID to sessionID, replacing any previous value.
	PutContextSession(ctx context.Context, contextID, sessionID string) error

	// Ready reports whether the backend can serve requests.
	Ready(ctx context.Context) bool

	// Close cleanly shuts down the storage backend.
	Close() error
}
