// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	a2a "github.com/go-a2a/a2a-gateway"
	"github.com/go-a2a/a2a-gateway/server/event"
)

// recordingSink collects published events.
type recordingSink struct {
	events []event.Event
	err    error
}

func (s *recordingSink) Enqueue(_ context.Context, ev event.Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func newTestUpdater(t *testing.T, sink event.Sink, agg *ResultAggregator) TaskUpdater {
	t.Helper()
	u, err := NewTaskUpdater(TaskUpdaterConfig{
		TaskID:     "task-1",
		ContextID:  "ctx-1",
		Sink:       sink,
		Aggregator: agg,
	})
	if err != nil {
		t.Fatalf("NewTaskUpdater() error = %v", err)
	}
	return u
}

func TestNewTaskUpdater(t *testing.T) {
	t.Parallel()

	tests := map[string]TaskUpdaterConfig{
		"error: missing task id":    {ContextID: "c", Sink: &recordingSink{}},
		"error: missing context id": {TaskID: "t", Sink: &recordingSink{}},
		"error: missing sink":       {TaskID: "t", ContextID: "c"},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewTaskUpdater(cfg); err == nil {
				t.Error("NewTaskUpdater() error = nil")
			}
		})
	}
}

func TestTaskUpdater_SingleTerminal(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	sink := &recordingSink{}
	u := newTestUpdater(t, sink, nil)

	if err := u.StartWork(ctx, map[string]any{"model": "m1"}); err != nil {
		t.Fatal(err)
	}
	if err := u.AddArtifact(ctx, a2a.NewTextArtifact("art-1", "response", "Hi"), false, false); err != nil {
		t.Fatal(err)
	}
	if err := u.Complete(ctx, a2a.NewAgentTextMessage("Hi", "ctx-1", "task-1")); err != nil {
		t.Fatal(err)
	}
	if !u.IsTerminal() {
		t.Error("IsTerminal() = false after Complete")
	}

	var notUpdatable TaskNotUpdatableError
	if err := u.Failed(ctx, nil); !errors.As(err, &notUpdatable) {
		t.Errorf("Failed() after Complete error = %v, want TaskNotUpdatableError", err)
	}
	if err := u.AddArtifact(ctx, a2a.NewTextArtifact("art-1", "response", "x"), true, false); !errors.As(err, &notUpdatable) {
		t.Errorf("AddArtifact() after Complete error = %v, want TaskNotUpdatableError", err)
	}

	var kinds []string
	finals := 0
	for _, ev := range sink.events {
		kinds = append(kinds, ev.EventType())
		if event.IsFinalEvent(ev) {
			finals++
		}
	}
	want := []string{event.KindStatusUpdate, event.KindArtifactUpdate, event.KindStatusUpdate}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("published events mismatch (-want +got):\n%s", diff)
	}
	if finals != 1 {
		t.Errorf("published %d final events, want 1", finals)
	}
}

func TestTaskUpdater_RequiresInputIsFinal(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	agg := NewResultAggregator()
	u := newTestUpdater(t, sink, agg)

	if err := u.RequiresInput(t.Context(), a2a.NewAgentTextMessage("", "ctx-1", "task-1")); err != nil {
		t.Fatal(err)
	}
	got := sink.events[0].(*event.TaskStatusUpdateEvent)
	if !got.Final || got.Status.State != a2a.TaskStateInputRequired {
		t.Errorf("published %s final=%t, want final input-required", got.Status.State, got.Final)
	}
	if agg.State() != a2a.TaskStateInputRequired {
		t.Errorf("aggregator state = %s", agg.State())
	}
}

func TestTaskUpdater_SinkFailureStillTerminates(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{err: event.ErrQueueClosed}
	u := newTestUpdater(t, sink, nil)

	err := u.Complete(t.Context(), nil)
	if !errors.Is(err, event.ErrQueueClosed) {
		t.Fatalf("Complete() error = %v, want ErrQueueClosed", err)
	}
	if !u.IsTerminal() {
		t.Error("IsTerminal() = false after a failed terminal emission")
	}
}
