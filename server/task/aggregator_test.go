// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"testing"

	a2a "github.com/go-a2a/a2a-gateway"
	"github.com/go-a2a/a2a-gateway/server/event"
)

func status(state a2a.TaskState, final bool, text string) *event.TaskStatusUpdateEvent {
	var msg *a2a.Message
	if text != "" {
		msg = a2a.NewAgentTextMessage(text, "ctx-1", "task-1")
	}
	return event.NewTaskStatusUpdateEvent("task-1", "ctx-1", a2a.TaskStatus{State: state, Message: msg}, final, nil)
}

func TestResultAggregator(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		events      []event.Event
		wantState   a2a.TaskState
		wantMessage string
	}{
		"initial state is working": {
			wantState: a2a.TaskStateWorking,
		},
		"artifacts are ignored": {
			events: []event.Event{
				event.NewTaskArtifactUpdateEvent("task-1", "ctx-1", a2a.NewTextArtifact("a", "r", "x"), false, false),
			},
			wantState: a2a.TaskStateWorking,
		},
		"input required over working": {
			events:      []event.Event{status(a2a.TaskStateInputRequired, false, "more?"), status(a2a.TaskStateWorking, false, "")},
			wantState:   a2a.TaskStateInputRequired,
			wantMessage: "more?",
		},
		"auth required after input required": {
			events:      []event.Event{status(a2a.TaskStateInputRequired, false, "more?"), status(a2a.TaskStateAuthRequired, false, "login")},
			wantState:   a2a.TaskStateAuthRequired,
			wantMessage: "login",
		},
		"input required re-entered after auth required": {
			events: []event.Event{
				status(a2a.TaskStateInputRequired, false, "more?"),
				status(a2a.TaskStateAuthRequired, false, "login"),
				status(a2a.TaskStateInputRequired, false, "which file?"),
			},
			wantState:   a2a.TaskStateInputRequired,
			wantMessage: "which file?",
		},
		"awaiting state does not replace completed": {
			events:      []event.Event{status(a2a.TaskStateCompleted, true, "done"), status(a2a.TaskStateAuthRequired, false, "login")},
			wantState:   a2a.TaskStateCompleted,
			wantMessage: "done",
		},
		"completed": {
			events:      []event.Event{status(a2a.TaskStateWorking, false, ""), status(a2a.TaskStateCompleted, true, "done")},
			wantState:   a2a.TaskStateCompleted,
			wantMessage: "done",
		},
		"failed dominates later statuses": {
			events: []event.Event{
				status(a2a.TaskStateFailed, true, "boom"),
				status(a2a.TaskStateCompleted, true, "done"),
				status(a2a.TaskStateAuthRequired, false, "login"),
				status(a2a.TaskStateFailed, true, "second failure"),
			},
			wantState:   a2a.TaskStateFailed,
			wantMessage: "boom",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			agg := NewResultAggregator()
			for _, ev := range tt.events {
				agg.Process(ev)
			}
			if got := agg.State(); got != tt.wantState {
				t.Errorf("State() = %s, want %s", got, tt.wantState)
			}
			if got := agg.Status().MessageText(); got != tt.wantMessage {
				t.Errorf("status message = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestResultAggregator_FailedIsSticky(t *testing.T) {
	t.Parallel()

	followers := []a2a.TaskState{
		a2a.TaskStateWorking,
		a2a.TaskStateInputRequired,
		a2a.TaskStateAuthRequired,
		a2a.TaskStateCompleted,
	}
	for _, next := range followers {
		for _, final := range []bool{false, true} {
			agg := NewResultAggregator()
			agg.Process(status(a2a.TaskStateWorking, false, ""))
			agg.Process(status(a2a.TaskStateFailed, true, "boom"))
			agg.Process(status(next, final, "later"))
			if got := agg.State(); got != a2a.TaskStateFailed {
				t.Errorf("failed then %s (final=%t): State() = %s", next, final, got)
			}
		}
	}
}

func TestResultAggregator_Forwarding(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in   *event.TaskStatusUpdateEvent
		want a2a.TaskState
	}{
		"non-final input required is normalized": {in: status(a2a.TaskStateInputRequired, false, ""), want: a2a.TaskStateWorking},
		"non-final auth required is normalized":  {in: status(a2a.TaskStateAuthRequired, false, ""), want: a2a.TaskStateWorking},
		"final input required is kept":           {in: status(a2a.TaskStateInputRequired, true, ""), want: a2a.TaskStateInputRequired},
		"failed is kept":                         {in: status(a2a.TaskStateFailed, false, ""), want: a2a.TaskStateFailed},
		"final completed is kept":                {in: status(a2a.TaskStateCompleted, true, ""), want: a2a.TaskStateCompleted},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			original := tt.in.Status.State
			got := NewResultAggregator().Process(tt.in).(*event.TaskStatusUpdateEvent)
			if got.Status.State != tt.want {
				t.Errorf("forwarded state = %s, want %s", got.Status.State, tt.want)
			}
			if tt.in.Status.State != original {
				t.Errorf("Process modified its input: %s -> %s", original, tt.in.Status.State)
			}
		})
	}
}
