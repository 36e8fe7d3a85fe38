// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent_execution runs push-protocol turns: it resolves the task a
// message belongs to and drives one inference turn into status and artifact
// events.
package agent_execution

import (
	a2a "github.com/go-a2a/a2a-gateway"
	"github.com/go-a2a/a2a-gateway/auth"
	"github.com/go-a2a/a2a-gateway/turn"
)

// RequestContext holds everything a turn needs about the inbound request.
type RequestContext struct {
	TaskID    string
	ContextID string

	// Task is the resolved task record. It is owned by the executor for the
	// duration of the turn.
	Task *a2a.Task

	// Message is the inbound user message.
	Message *a2a.Message

	// Query is the text content of Message.
	Query string

	Hint turn.Hint

	// AuthToken is forwarded to the session resolver.
	AuthToken string
	User      auth.User

	Metadata map[string]any

	// Created reports whether the task was minted for this request.
	Created bool
}
