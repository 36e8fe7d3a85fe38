// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent_execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	a2a "github.com/go-a2a/a2a-gateway"
	"github.com/go-a2a/a2a-gateway/auth"
	"github.com/go-a2a/a2a-gateway/server/task"
	"github.com/go-a2a/a2a-gateway/turn"
)

// Metadata keys selecting the model and provider of a turn.
const (
	MetadataModel    = "model"
	MetadataProvider = "provider"
)

// RequestContextBuilder resolves the task targeted by an inbound message.
//
// Build fails with an [a2a.InputError] when the request carries no usable
// input, before any backend is contacted.
type RequestContextBuilder interface {
	Build(ctx context.Context, params *a2a.MessageSendParams, user auth.User) (*RequestContext, error)
}

// StoreContextBuilder builds request contexts against a task store.
type StoreContextBuilder struct {
	store  task.Store
	logger *slog.Logger
}

var _ RequestContextBuilder = (*StoreContextBuilder)(nil)

// NewStoreContextBuilder returns a builder loading and persisting tasks in store.
func NewStoreContextBuilder(store task.Store, logger *slog.Logger) *StoreContextBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreContextBuilder{store: store, logger: logger}
}

// Build resolves the task of params.
//
// A message naming an existing task continues it, unless the task already
// reached a terminal state. A message naming an unknown task id creates the
// task under that id. A message naming no task mints new ids, reusing the
// message context id when present. New tasks are persisted before returning.
func (b *StoreContextBuilder) Build(ctx context.Context, params *a2a.MessageSendParams, user auth.User) (*RequestContext, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	msg := params.Message
	query := strings.TrimSpace(msg.Text())
	if query == "" {
		return nil, a2a.NewInputError("message", "message has no text content")
	}

	var (
		t       *a2a.Task
		created bool
	)
	if msg.TaskID != "" {
		existing, err := b.store.GetTask(ctx, msg.TaskID)
		var nf a2a.TaskNotFoundError
		switch {
		case err == nil:
			t = existing
		case errors.As(err, &nf):
		default:
			return nil, fmt.Errorf("load task %s: %w", msg.TaskID, err)
		}
	}

	if t != nil {
		if a2a.IsTerminalTaskState(t.Status.State) {
			return nil, a2a.NewInputError("taskId", "task %s is already %s", t.ID, t.Status.State)
		}
		if msg.ContextID != "" && msg.ContextID != t.ContextID {
			return nil, a2a.NewInputError("contextId", "task %s belongs to context %s", t.ID, t.ContextID)
		}
	} else {
		t = a2a.NewTask(msg.TaskID, msg.ContextID)
		t.Metadata = params.Metadata
		created = true
		if err := b.store.PutTask(ctx, t); err != nil {
			return nil, fmt.Errorf("persist task %s: %w", t.ID, err)
		}
		b.logger.DebugContext(ctx, "task created", slog.String("task_id", t.ID), slog.String("context_id", t.ContextID))
	}

	if user == nil {
		user = auth.UnauthenticatedUser{}
	}

	return &RequestContext{
		TaskID:    t.ID,
		ContextID: t.ContextID,
		Task:      t,
		Message:   msg,
		Query:     query,
		Hint:      hintFrom(params.Metadata, msg.Metadata),
		AuthToken: user.Token(),
		User:      user,
		Metadata:  params.Metadata,
		Created:   created,
	}, nil
}

// hintFrom reads the model and provider hints, preferring request metadata over
// message metadata.
func hintFrom(sources ...map[string]any) turn.Hint {
	var h turn.Hint
	for _, md := range sources {
		if h.Model == "" {
			h.Model, _ = md[MetadataModel].(string)
		}
		if h.Provider == "" {
			h.Provider, _ = md[MetadataProvider].(string)
		}
	}
	return h
}
