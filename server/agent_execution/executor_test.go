// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent_execution

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"syscall"
	"testing"

	"github.com/google/go-cmp/cmp"

	a2a "github.com/go-a2a/a2a-gateway"
	"github.com/go-a2a/a2a-gateway/internal/metrics"
	"github.com/go-a2a/a2a-gateway/server/event"
	"github.com/go-a2a/a2a-gateway/server/task"
	"github.com/go-a2a/a2a-gateway/turn"
	"github.com/go-a2a/a2a-gateway/turn/turntest"
)

// recorder is a sink collecting published events.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
	// failOn rejects events of that status state.
	failOn a2a.TaskState
}

func (r *recorder) Enqueue(_ context.Context, ev event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := ev.(*event.TaskStatusUpdateEvent); ok && r.failOn != "" && s.Status.State == r.failOn {
		return errors.New("sink rejected event")
	}
	r.events = append(r.events, ev)
	return nil
}

// observed is the comparable projection of an event.
type observed struct {
	Kind      string
	State     a2a.TaskState
	Text      string
	Append    bool
	LastChunk bool
	Final     bool
}

func (r *recorder) observed() []observed {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]observed, 0, len(r.events))
	for _, ev := range r.events {
		switch ev := ev.(type) {
		case *event.TaskStatusUpdateEvent:
			out = append(out, observed{Kind: ev.Kind, State: ev.Status.State, Text: ev.Status.MessageText(), Final: ev.Final})
		case *event.TaskArtifactUpdateEvent:
			out = append(out, observed{Kind: ev.Kind, Text: ev.Artifact.Text(), Append: ev.Append, LastChunk: ev.LastChunk})
		}
	}
	return out
}

// failingStore fails the context session operations it is told to.
type failingStore struct {
	*task.InMemoryStore
	failGet bool
	failPut bool
}

func (s *failingStore) GetContextSession(ctx context.Context, contextID string) (string, bool, error) {
	if s.failGet {
		return "", false, task.NewStoreError("get_context_session", contextID, syscall.ECONNREFUSED)
	}
	return s.InMemoryStore.GetContextSession(ctx, contextID)
}

func (s *failingStore) PutContextSession(ctx context.Context, contextID, sessionID string) error {
	if s.failPut {
		return task.NewStoreError("put_context_session", contextID, syscall.ECONNREFUSED)
	}
	return s.InMemoryStore.PutContextSession(ctx, contextID, sessionID)
}

func newExecutor(t *testing.T, store task.Store, resolver turn.Resolver) *TurnExecutor {
	t.Helper()
	e, err := NewTurnExecutor(TurnExecutorConfig{
		Store:    store,
		Resolver: resolver,
		Metrics:  metrics.New(),
	})
	if err != nil {
		t.Fatalf("NewTurnExecutor() error = %v", err)
	}
	return e
}

func newRequest(t *testing.T, store task.Store, contextID, query string) *RequestContext {
	t.Helper()
	msg := a2a.NewUserTextMessage(query)
	msg.ContextID = contextID
	rc, err := NewStoreContextBuilder(store, nil).Build(t.Context(), &a2a.MessageSendParams{Message: msg}, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return rc
}

const unavailableText = "Error: Unable to connect to the inference backend: The inference backend cannot be reached"

func TestTurnExecutor_Execute(t *testing.T) {
	t.Parallel()

	working := observed{Kind: event.KindStatusUpdate, State: a2a.TaskStateWorking}
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}

	tests := map[string]struct {
		steps     []turntest.Step
		wantState a2a.TaskState
		want      []observed
	}{
		"success: deltas then turn complete": {
			steps: turntest.Script(
				turn.TurnStarted{},
				turn.TextDelta{Text: "Hi"},
				turn.TextDelta{Text: " there"},
				turn.TurnComplete{Text: "Hi there", SessionID: "sess-1", MessageID: "msg-1"},
			),
			wantState: a2a.TaskStateCompleted,
			want: []observed{
				working,
				{Kind: event.KindArtifactUpdate, Text: "Hi"},
				{Kind: event.KindArtifactUpdate, Text: " there", Append: true},
				{Kind: event.KindArtifactUpdate, Text: "", Append: true, LastChunk: true},
				{Kind: event.KindStatusUpdate, State: a2a.TaskStateCompleted, Text: "Hi there", Final: true},
			},
		},
		"success: awaiting input without deltas": {
			steps:     turntest.Script(turn.AwaitingInput{}),
			wantState: a2a.TaskStateInputRequired,
			want: []observed{
				working,
				{Kind: event.KindStatusUpdate, State: a2a.TaskStateInputRequired, Text: "", Final: true},
			},
		},
		"success: awaiting input carries text not yet streamed": {
			steps: turntest.Script(
				turn.TextDelta{Text: "Which "},
				turn.AwaitingInput{Text: "Which city?"},
				turn.TextDelta{Text: "ignored"},
			),
			wantState: a2a.TaskStateInputRequired,
			want: []observed{
				working,
				{Kind: event.KindArtifactUpdate, Text: "Which "},
				{Kind: event.KindStatusUpdate, State: a2a.TaskStateInputRequired, Text: "city?", Final: true},
			},
		},
		"success: complete without deltas flushes full text": {
			steps:     turntest.Script(turn.TurnComplete{Text: "Done"}),
			wantState: a2a.TaskStateCompleted,
			want: []observed{
				working,
				{Kind: event.KindArtifactUpdate, Text: "Done", LastChunk: true},
				{Kind: event.KindStatusUpdate, State: a2a.TaskStateCompleted, Text: "Done", Final: true},
			},
		},
		"success: exhausted stream falls back to completed": {
			steps:     turntest.Script(turn.TextDelta{Text: "partial"}),
			wantState: a2a.TaskStateCompleted,
			want: []observed{
				working,
				{Kind: event.KindArtifactUpdate, Text: "partial"},
				{Kind: event.KindArtifactUpdate, Text: "", Append: true, LastChunk: true},
				{Kind: event.KindStatusUpdate, State: a2a.TaskStateCompleted, Text: "partial", Final: true},
			},
		},
		"success: empty stream falls back to completed": {
			wantState: a2a.TaskStateCompleted,
			want: []observed{
				working,
				{Kind: event.KindArtifactUpdate, Text: "", LastChunk: true},
				{Kind: event.KindStatusUpdate, State: a2a.TaskStateCompleted, Text: "", Final: true},
			},
		},
		"success: unknown and progress events are ignored": {
			steps: turntest.Script(
				turn.Unknown{Type: "future_event"},
				turn.ToolStepStarted{},
				turn.ShieldResult{Violation: &turn.Violation{UserMessage: "blocked"}},
				turn.TurnComplete{Text: "ok"},
			),
			wantState: a2a.TaskStateCompleted,
			want: []observed{
				working,
				{Kind: event.KindArtifactUpdate, Text: "ok", LastChunk: true},
				{Kind: event.KindStatusUpdate, State: a2a.TaskStateCompleted, Text: "ok", Final: true},
			},
		},
		"error: connectivity failure before any event": {
			steps:     []turntest.Step{{Err: refused}},
			wantState: a2a.TaskStateFailed,
			want: []observed{
				working,
				{Kind: event.KindStatusUpdate, State: a2a.TaskStateFailed, Text: unavailableText, Final: true},
			},
		},
		"error: error event after deltas": {
			steps: turntest.Script(
				turn.TextDelta{Text: "Hi"},
				turn.ErrorEvent{Err: a2a.NewRateLimitError("m1", errors.New("429"))},
				turn.TurnComplete{Text: "never"},
			),
			wantState: a2a.TaskStateFailed,
			want: []observed{
				working,
				{Kind: event.KindArtifactUpdate, Text: "Hi"},
				{
					Kind:  event.KindStatusUpdate,
					State: a2a.TaskStateFailed,
					Text:  "Error: The quota has been exceeded: The model quota has been exceeded for model m1",
					Final: true,
				},
			},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store := task.NewInMemoryStore()
			stream := turntest.NewStream("sess-1", tt.steps...)
			e := newExecutor(t, store, turntest.Resolver(turntest.NewClient(stream), "m1"))
			rc := newRequest(t, store, "", "hello")
			sink := &recorder{}

			if err := e.Execute(t.Context(), rc, sink); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, sink.observed()); diff != "" {
				t.Errorf("events mismatch (-want +got):\n%s", diff)
			}
			if !stream.Closed() {
				t.Error("turn stream was not closed")
			}

			got, err := store.GetTask(t.Context(), rc.TaskID)
			if err != nil {
				t.Fatalf("GetTask() error = %v", err)
			}
			if got.Status.State != tt.wantState {
				t.Errorf("persisted state = %s, want %s", got.Status.State, tt.wantState)
			}
		})
	}
}

func TestTurnExecutor_ExactlyOneTerminal(t *testing.T) {
	t.Parallel()

	sequences := map[string][]turntest.Step{
		"empty":              nil,
		"single error":       {{Err: errors.New("boom")}},
		"normal":             turntest.Script(turn.TextDelta{Text: "a"}, turn.TurnComplete{}),
		"double complete":    turntest.Script(turn.TurnComplete{Text: "a"}, turn.TurnComplete{Text: "b"}),
		"error then await":   turntest.Script(turn.ErrorEvent{Err: errors.New("x")}, turn.AwaitingInput{}),
		"await then error":   {{Event: turn.AwaitingInput{}}, {Err: errors.New("late")}},
		"deltas then source": {{Event: turn.TextDelta{Text: "a"}}, {Event: turn.TextDelta{Text: "b"}}, {Err: errors.New("eof")}},
	}
	for name, steps := range sequences {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store := task.NewInMemoryStore()
			e := newExecutor(t, store, turntest.Resolver(turntest.NewClient(turntest.NewStream("s", steps...)), "m1"))
			sink := &recorder{}
			if err := e.Execute(t.Context(), newRequest(t, store, "", "q"), sink); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}

			var finals int
			var sawArtifact bool
			obs := sink.observed()
			for i, o := range obs {
				if o.Final {
					finals++
					if i != len(obs)-1 {
						t.Errorf("event after terminal at index %d", i)
					}
				}
				if o.Kind == event.KindArtifactUpdate {
					if o.Append != sawArtifact {
						t.Errorf("artifact %d append = %t, want %t", i, o.Append, sawArtifact)
					}
					sawArtifact = true
				}
			}
			if finals != 1 {
				t.Errorf("terminal events = %d, want 1", finals)
			}
		})
	}
}

func TestTurnExecutor_ResolverFailure(t *testing.T) {
	t.Parallel()

	store := task.NewInMemoryStore()
	e := newExecutor(t, store, turntest.FailingResolver(a2a.NewBackendUnavailableError(errors.New("dial tcp: refused"))))
	sink := &recorder{}
	if err := e.Execute(t.Context(), newRequest(t, store, "", "q"), sink); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := []observed{{Kind: event.KindStatusUpdate, State: a2a.TaskStateFailed, Text: unavailableText, Final: true}}
	if diff := cmp.Diff(want, sink.observed()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestTurnExecutor_TurnAcquisitionFailure(t *testing.T) {
	t.Parallel()

	store := task.NewInMemoryStore()
	client := turntest.NewClient()
	client.Err = a2a.NewBackendStatusError(502, errors.New("bad gateway"))
	e := newExecutor(t, store, turntest.Resolver(client, "m1"))
	sink := &recorder{}
	if err := e.Execute(t.Context(), newRequest(t, store, "", "q"), sink); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	obs := sink.observed()
	last := obs[len(obs)-1]
	if last.State != a2a.TaskStateFailed || !last.Final {
		t.Fatalf("last event = %+v, want final failed", last)
	}
	if !strings.Contains(last.Text, "bad gateway") {
		t.Errorf("failed text = %q, want upstream cause", last.Text)
	}
}

func TestTurnExecutor_SessionContinuity(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := task.NewInMemoryStore()
	client := turntest.NewClient(
		turntest.NewStream("sess-1", turntest.Script(turn.TurnComplete{Text: "one", SessionID: "sess-1"})...),
		turntest.NewStream("", turntest.Script(turn.TurnComplete{Text: "two"})...),
		turntest.NewStream("", turntest.Script(turn.TurnComplete{Text: "three", SessionID: "sess-3"})...),
	)
	e := newExecutor(t, store, turntest.Resolver(client, "m1"))

	const contextID = "ctx-continuity"
	for i := range 3 {
		if err := e.Execute(ctx, newRequest(t, store, contextID, "turn"), &recorder{}); err != nil {
			t.Fatalf("turn %d: Execute() error = %v", i, err)
		}
	}

	var sessions []string
	for _, req := range client.Requests() {
		sessions = append(sessions, req.SessionID)
	}
	if diff := cmp.Diff([]string{"", "sess-1", "sess-1"}, sessions); diff != "" {
		t.Errorf("turn request session ids mismatch (-want +got):\n%s", diff)
	}

	got, ok, err := store.GetContextSession(ctx, contextID)
	if err != nil || !ok {
		t.Fatalf("GetContextSession() = %q, %t, %v", got, ok, err)
	}
	if got != "sess-3" {
		t.Errorf("GetContextSession() = %q, want sess-3", got)
	}
}

func TestTurnExecutor_FailedTurnKeepsSession(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := task.NewInMemoryStore()
	if err := store.PutContextSession(ctx, "ctx-1", "sess-old"); err != nil {
		t.Fatal(err)
	}
	client := turntest.NewClient(turntest.NewStream("sess-new", turntest.Step{Err: errors.New("boom")}))
	e := newExecutor(t, store, turntest.Resolver(client, "m1"))

	if err := e.Execute(ctx, newRequest(t, store, "ctx-1", "q"), &recorder{}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	got, _, _ := store.GetContextSession(ctx, "ctx-1")
	if got != "sess-old" {
		t.Errorf("GetContextSession() = %q, want sess-old", got)
	}
}

func TestTurnExecutor_StorageFailures(t *testing.T) {
	t.Parallel()

	t.Run("error: lookup fails the turn", func(t *testing.T) {
		t.Parallel()

		store := &failingStore{InMemoryStore: task.NewInMemoryStore(), failGet: true}
		client := turntest.NewClient()
		e := newExecutor(t, store, turntest.Resolver(client, "m1"))
		sink := &recorder{}
		if err := e.Execute(t.Context(), newRequest(t, store, "", "q"), sink); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}

		want := []observed{{
			Kind:  event.KindStatusUpdate,
			State: a2a.TaskStateFailed,
			Text:  "Error: Internal server error: Unable to access conversation state",
			Final: true,
		}}
		if diff := cmp.Diff(want, sink.observed()); diff != "" {
			t.Errorf("events mismatch (-want +got):\n%s", diff)
		}
		if n := len(client.Requests()); n != 0 {
			t.Errorf("backend turns = %d, want 0", n)
		}
	})

	t.Run("success: mapping write failure keeps completed", func(t *testing.T) {
		t.Parallel()

		store := &failingStore{InMemoryStore: task.NewInMemoryStore(), failPut: true}
		stream := turntest.NewStream("sess-1", turntest.Script(turn.TurnComplete{Text: "ok"})...)
		e := newExecutor(t, store, turntest.Resolver(turntest.NewClient(stream), "m1"))
		sink := &recorder{}
		if err := e.Execute(t.Context(), newRequest(t, store, "", "q"), sink); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}

		obs := sink.observed()
		if last := obs[len(obs)-1]; last.State != a2a.TaskStateCompleted || !last.Final {
			t.Errorf("last event = %+v, want final completed", last)
		}
	})
}

func TestTurnExecutor_Cancellation(t *testing.T) {
	t.Parallel()

	store := task.NewInMemoryStore()
	stream := turntest.NewStream("sess-1",
		turntest.Step{Event: turn.TextDelta{Text: "Hi"}},
		turntest.Step{Block: true},
		turntest.Step{Event: turn.TurnComplete{Text: "Hi there"}},
	)
	e := newExecutor(t, store, turntest.Resolver(turntest.NewClient(stream), "m1"))
	rc := newRequest(t, store, "", "q")

	ctx, cancel := context.WithCancel(t.Context())
	sink := &recorder{}
	hook := event.SinkFunc(func(ctx context.Context, ev event.Event) error {
		if _, ok := ev.(*event.TaskArtifactUpdateEvent); ok {
			cancel()
		}
		return sink.Enqueue(ctx, ev)
	})

	err := e.Execute(ctx, rc, hook)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
	for _, o := range sink.observed() {
		if o.Final {
			t.Errorf("terminal event published after cancellation: %+v", o)
		}
	}
	if !stream.Closed() {
		t.Error("turn stream was not closed")
	}
	if n := stream.Consumed(); n > 2 {
		t.Errorf("consumed %d steps after cancellation, want at most 2", n)
	}

	got, err := store.GetTask(t.Context(), rc.TaskID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status.State != a2a.TaskStateSubmitted {
		t.Errorf("persisted state = %s, want submitted", got.Status.State)
	}
}

func TestTurnExecutor_SinkRejectsTerminal(t *testing.T) {
	t.Parallel()

	store := task.NewInMemoryStore()
	stream := turntest.NewStream("sess-1", turntest.Script(turn.AwaitingInput{Text: "more?"}, turn.TurnComplete{})...)
	e := newExecutor(t, store, turntest.Resolver(turntest.NewClient(stream), "m1"))
	sink := &recorder{failOn: a2a.TaskStateInputRequired}

	if err := e.Execute(t.Context(), newRequest(t, store, "", "q"), sink); err == nil {
		t.Fatal("Execute() error = nil, want publish error")
	}
	if n := stream.Consumed(); n != 1 {
		t.Errorf("consumed %d steps, want 1", n)
	}
}
