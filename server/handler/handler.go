// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package handler exposes the gateway over HTTP: the JSON-RPC push protocol
// endpoint, the agent card and the SSE streaming query endpoint.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	a2a "github.com/go-a2a/a2a-gateway"
	"github.com/go-a2a/a2a-gateway/auth"
	"github.com/go-a2a/a2a-gateway/server/agent_execution"
	"github.com/go-a2a/a2a-gateway/server/event"
	"github.com/go-a2a/a2a-gateway/server/task"
)

// DefaultReceiveTimeout bounds the wait for the next event of a turn.
const DefaultReceiveTimeout = 5 * time.Minute

// RequestHandler handles the push-protocol methods.
type RequestHandler interface {
	// OnMessageSend runs a turn to completion and returns the resulting task.
	OnMessageSend(ctx context.Context, params *a2a.MessageSendParams, user auth.User) (*a2a.Task, error)

	// OnMessageStream starts a turn and returns its event stream. Input errors
	// are returned before the turn starts.
	OnMessageStream(ctx context.Context, params *a2a.MessageSendParams, user auth.User) (*EventStream, error)

	// OnGetTask returns a stored task.
	OnGetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error)
}

// Executor runs one turn into a sink.
type Executor interface {
	Execute(ctx context.Context, rc *agent_execution.RequestContext, sink event.Sink) error
}

// DefaultRequestHandlerConfig configures a DefaultRequestHandler.
type DefaultRequestHandlerConfig struct {
	Builder  agent_execution.RequestContextBuilder
	Executor Executor
	Store    task.Store

	// QueueSize bounds the events buffered between the turn and the caller.
	QueueSize int
	// ReceiveTimeout bounds the wait for each event. Zero means DefaultReceiveTimeout.
	ReceiveTimeout time.Duration

	Logger *slog.Logger
}

// DefaultRequestHandler connects the turn executor to callers through a
// bounded event queue per turn.
type DefaultRequestHandler struct {
	builder   agent_execution.RequestContextBuilder
	executor  Executor
	store     task.Store
	queueSize int
	timeout   time.Duration
	logger    *slog.Logger
}

var _ RequestHandler = (*DefaultRequestHandler)(nil)

// NewDefaultRequestHandler returns a DefaultRequestHandler.
func NewDefaultRequestHandler(cfg DefaultRequestHandlerConfig) (*DefaultRequestHandler, error) {
	if cfg.Builder == nil {
		return nil, errors.New("request context builder cannot be nil")
	}
	if cfg.Executor == nil {
		return nil, errors.New("executor cannot be nil")
	}
	if cfg.Store == nil {
		return nil, errors.New("task store cannot be nil")
	}
	if cfg.QueueSize < 0 {
		return nil, event.ErrInvalidQueueSize
	}
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = DefaultReceiveTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &DefaultRequestHandler{
		builder:   cfg.Builder,
		executor:  cfg.Executor,
		store:     cfg.Store,
		queueSize: cfg.QueueSize,
		timeout:   cfg.ReceiveTimeout,
		logger:    cfg.Logger,
	}, nil
}

// OnMessageSend implements RequestHandler.
func (h *DefaultRequestHandler) OnMessageSend(ctx context.Context, params *a2a.MessageSendParams, user auth.User) (*a2a.Task, error) {
	stream, err := h.OnMessageStream(ctx, params, user)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	result := stream.Task()
	for {
		ev, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if s, ok := ev.(*event.TaskStatusUpdateEvent); ok {
			result.Status = s.Status
		}
	}
	if !a2a.IsTerminalTaskState(result.Status.State) && !a2a.IsInterruptedTaskState(result.Status.State) {
		return nil, fmt.Errorf("turn of task %s ended in state %s: %w", result.ID, result.Status.State, a2a.ErrInternal)
	}
	return result, nil
}

// OnMessageStream implements RequestHandler.
//
// The turn runs on its own goroutine and feeds a bounded queue: a slow caller
// stalls the turn instead of buffering without limit. The turn is canceled
// when ctx is done or the stream is closed.
func (h *DefaultRequestHandler) OnMessageStream(ctx context.Context, params *a2a.MessageSendParams, user auth.User) (*EventStream, error) {
	rc, err := h.builder.Build(ctx, params, user)
	if err != nil {
		return nil, err
	}

	queue, err := event.NewEventQueue(h.queueSize)
	if err != nil {
		return nil, err
	}

	pctx, cancel := context.WithCancelCause(ctx)
	s := &EventStream{
		queue:   queue,
		cancel:  cancel,
		done:    make(chan struct{}),
		timeout: h.timeout,
		task:    rc.Task.Clone(),
	}

	go func() {
		defer close(s.done)
		defer queue.Close()
		if err := h.executor.Execute(pctx, rc, queue); err != nil && !errors.Is(err, context.Canceled) {
			h.logger.ErrorContext(pctx, "turn aborted", slog.String("task_id", rc.TaskID), slog.Any("error", err))
		}
	}()

	return s, nil
}

// OnGetTask implements RequestHandler.
func (h *DefaultRequestHandler) OnGetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error) {
	if params == nil || params.ID == "" {
		return nil, a2a.NewInputError("id", "task id cannot be empty")
	}
	return h.store.GetTask(ctx, params.ID)
}

// EventStream is the consumer side of one running turn.
type EventStream struct {
	queue   *event.EventQueue
	cancel  context.CancelCauseFunc
	done    chan struct{}
	timeout time.Duration
	task    *a2a.Task

	mu       sync.Mutex
	finished bool
}

// Task returns a copy of the task the turn runs for, as it was before the turn.
func (s *EventStream) Task() *a2a.Task {
	return s.task.Clone()
}

// Next returns the next event of the turn in production order. It returns
// io.EOF after the final event, and [event.ErrDequeueTimeout] when the turn
// produced nothing within the receive timeout. A timeout cancels the turn,
// which then records itself as failed.
func (s *EventStream) Next(ctx context.Context) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return nil, io.EOF
	}

	ev, err := s.queue.Dequeue(ctx, s.timeout)
	switch {
	case errors.Is(err, event.ErrQueueClosed):
		s.finished = true
		return nil, io.EOF
	case errors.Is(err, event.ErrDequeueTimeout):
		s.finished = true
		s.cancel(err)
		return nil, err
	case err != nil:
		return nil, err
	}
	if event.IsFinalEvent(ev) {
		s.finished = true
	}
	return ev, nil
}

// Close cancels the turn if it is still running and waits for it to release
// its resources. Close is safe to call more than once.
func (s *EventStream) Close() {
	s.cancel(nil)
	<-s.done
}
