// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTaskStatePredicates(t *testing.T) {
	t.Parallel()

	tests := map[TaskState]struct {
		terminal    bool
		interrupted bool
	}{
		TaskStateSubmitted:     {},
		TaskStateWorking:       {},
		TaskStateInputRequired: {interrupted: true},
		TaskStateAuthRequired:  {interrupted: true},
		TaskStateCompleted:     {terminal: true},
		TaskStateFailed:        {terminal: true},
		TaskStateCanceled:      {terminal: true},
		TaskStateRejected:      {terminal: true},
	}
	for state, tt := range tests {
		t.Run(string(state), func(t *testing.T) {
			t.Parallel()

			if err := state.Validate(); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			if got := IsTerminalTaskState(state); got != tt.terminal {
				t.Errorf("IsTerminalTaskState() = %v, want %v", got, tt.terminal)
			}
			if got := IsInterruptedTaskState(state); got != tt.interrupted {
				t.Errorf("IsInterruptedTaskState() = %v, want %v", got, tt.interrupted)
			}
		})
	}

	if err := TaskState("paused").Validate(); err == nil {
		t.Error("Validate() accepted an unknown state")
	}
}

func TestNewTask(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		taskID, contextID string
	}{
		"success: caller ids":    {taskID: "t1", contextID: "c1"},
		"success: generated ids": {},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			task := NewTask(tt.taskID, tt.contextID)
			if err := task.Validate(); err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if tt.taskID != "" && (task.ID != tt.taskID || task.ContextID != tt.contextID) {
				t.Errorf("ids = %q/%q, want %q/%q", task.ID, task.ContextID, tt.taskID, tt.contextID)
			}
			if task.Status.State != TaskStateSubmitted || task.Kind != KindTask {
				t.Errorf("task = %+v, want a submitted task", task)
			}
		})
	}
}

func TestTask_Clone(t *testing.T) {
	t.Parallel()

	orig := NewTask("t1", "c1")
	orig.Metadata = map[string]any{"model": "m1"}
	orig.Status.Message = NewAgentTextMessage("hello", "c1", "t1")

	c := orig.Clone()
	if diff := cmp.Diff(orig, c); diff != "" {
		t.Fatalf("Clone() mismatch (-want +got):\n%s", diff)
	}

	c.Metadata["model"] = "m2"
	c.Status.Message.Parts[0].Text = "changed"
	if orig.Metadata["model"] != "m1" || orig.Status.MessageText() != "hello" {
		t.Error("mutating the clone changed the original")
	}
	if (*Task)(nil).Clone() != nil {
		t.Error("Clone() of nil task is not nil")
	}
}
