// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"fmt"
	"sync"

	a2a "github.com/go-a2a/a2a-gateway"
)

// InMemoryStore is an in-memory implementation of Store.
// State is lost when the process stops.
// All operations are thread-safe using sync.RWMutex.
type InMemoryStore struct {
	mu       sync.RWMutex
	tasks    map[string]*a2a.Task
	sessions map[string]string
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tasks:    make(map[string]*a2a.Task),
		sessions: make(map[string]string),
	}
}

// GetTask retrieves a task by its ID from the in-memory storage.
func (s *InMemoryStore) GetTask(ctx context.Context, taskID string) (*a2a.Task, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task ID cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	task, exists := s.tasks[taskID]
	if !exists {
		return nil, a2a.TaskNotFoundError{TaskID: taskID}
	}

	// Return a deep copy to avoid race conditions
	return task.Clone(), nil
}

// PutTask persists a task to the in-memory storage.
func (s *InMemoryStore) PutTask(ctx context.Context, task *a2a.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[task.ID] = task.Clone()
	return nil
}

// GetContextSession returns the session bound to contextID.
func (s *InMemoryStore) GetContextSession(ctx context.Context, contextID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessionID, ok := s.sessions[contextID]
	return sessionID, ok, nil
}

// PutContextSession binds contextID to sessionID.
func (s *InMemoryStore) PutContextSession(ctx context.Context, contextID, sessionID string) error {
	if contextID == "" {
		return fmt.Errorf("context ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[contextID] = sessionID
	return nil
}

// Ready always reports true.
func (s *InMemoryStore) Ready(context.Context) bool {
	return true
}

// Close clears all state.
func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make(map[string]*a2a.Task)
	s.sessions = make(map[string]string)
	return nil
}
