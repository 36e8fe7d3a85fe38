// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package turn defines the consumption contract of the inference backend: a
// resolver that selects a model and provider, and a lazy stream of typed events
// produced for one conversational turn.
//
// The event set is closed. Consumers switch over the concrete types and must
// treat [Unknown] (and any type they do not recognize) as a no-op so that
// upstream additions never crash a bridge.
package turn

import (
	"context"
)

// Kind identifies the kind of an [Event].
type Kind string

const (
	KindTurnStarted     Kind = "turn_start"
	KindTextDelta       Kind = "text_delta"
	KindShieldResult    Kind = "shield_result"
	KindToolStepStarted Kind = "tool_call_step_start"
	KindToolExecution   Kind = "tool_call_step_complete"
	KindAwaitingInput   Kind = "awaiting_input"
	KindTurnComplete    Kind = "turn_complete"
	KindError           Kind = "error"
	KindUnknown         Kind = "unknown"
)

// Event is one inference event of a turn.
type Event interface {
	Kind() Kind
	isEvent()
}

// TurnStarted marks the beginning of the turn.
type TurnStarted struct{}

// TextDelta carries an incremental chunk of assistant text.
type TextDelta struct {
	Text string
}

// Violation describes a content-safety shield violation.
type Violation struct {
	UserMessage string
	Metadata    map[string]any
}

// ShieldResult reports the outcome of an input or output shield check.
// A nil Violation means the check passed.
type ShieldResult struct {
	Violation *Violation
}

// ToolStepStarted marks the start of a tool execution step.
type ToolStepStarted struct{}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	CallID    string
	ToolName  string
	Arguments string
}

// ContentItem is one item of a tool response. Only text items carry Text.
type ContentItem struct {
	Type string
	Text string
}

// ToolResponse is the output of one tool invocation.
type ToolResponse struct {
	CallID   string
	ToolName string
	Content  []ContentItem
}

// ToolExecution reports a completed tool step with its calls and responses.
type ToolExecution struct {
	Calls     []ToolCall
	Responses []ToolResponse
}

// AwaitingInput reports that the assistant paused the turn waiting for the user.
// Text is the full output of the turn so far, which may include text already
// delivered as deltas.
type AwaitingInput struct {
	Text string
}

// Usage is the token accounting of a turn.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Document is a document the assistant referenced while answering.
type Document struct {
	URL   string
	Title string
}

// TurnComplete marks the successful end of the turn.
type TurnComplete struct {
	// Text is the complete assistant output.
	Text string
	// SessionID is the backend session the turn ran in; empty means unchanged.
	SessionID string
	// MessageID is the backend identifier of the output message.
	MessageID string
	Usage     Usage
	Documents []Document
}

// ErrorEvent reports an error raised by the backend mid-stream.
type ErrorEvent struct {
	Err error
}

// Unknown is an event type the gateway does not understand.
type Unknown struct {
	Type string
}

func (TurnStarted) Kind() Kind     { return KindTurnStarted }
func (TextDelta) Kind() Kind       { return KindTextDelta }
func (ShieldResult) Kind() Kind    { return KindShieldResult }
func (ToolStepStarted) Kind() Kind { return KindToolStepStarted }
func (ToolExecution) Kind() Kind   { return KindToolExecution }
func (AwaitingInput) Kind() Kind   { return KindAwaitingInput }
func (TurnComplete) Kind() Kind    { return KindTurnComplete }
func (ErrorEvent) Kind() Kind      { return KindError }
func (Unknown) Kind() Kind         { return KindUnknown }

func (TurnStarted) isEvent()     {}
func (TextDelta) isEvent()       {}
func (ShieldResult) isEvent()    {}
func (ToolStepStarted) isEvent() {}
func (ToolExecution) isEvent()   {}
func (AwaitingInput) isEvent()   {}
func (TurnComplete) isEvent()    {}
func (ErrorEvent) isEvent()      {}
func (Unknown) isEvent()         {}

// IsTerminal reports whether ev ends the turn. Nothing is read from a stream
// after its terminal event.
func IsTerminal(ev Event) bool {
	switch ev.(type) {
	case TurnComplete, AwaitingInput, ErrorEvent:
		return true
	default:
		return false
	}
}

// Stream is the lazy, possibly unbounded event sequence of one turn.
//
// Recv returns io.EOF once the source is exhausted. Any other error is a failure
// of the source itself. Recv must honour ctx cancellation. Close releases the
// source and is safe to call more than once. Callers do not call Close while a
// Recv is in flight.
type Stream interface {
	Recv(ctx context.Context) (Event, error)
	// SessionID returns the backend session the turn runs in.
	SessionID() string
	Close() error
}

// Request describes one turn.
type Request struct {
	Query string
	// SessionID continues a previous backend session; empty starts a new one.
	SessionID    string
	SystemPrompt string
	// Metadata carries caller-provided values forwarded to the backend.
	Metadata map[string]any
}

// Client runs turns against a resolved model.
type Client interface {
	Turn(ctx context.Context, req Request) (Stream, error)
}

// Hint selects a model and provider. Empty fields mean backend defaults.
type Hint struct {
	Model    string
	Provider string
}

// Resolver selects a model and provider for a turn.
//
// Failures are connectivity or not-found errors from the root package taxonomy.
type Resolver interface {
	Resolve(ctx context.Context, hint Hint, authToken string) (client Client, modelID string, err error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, hint Hint, authToken string) (Client, string, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, hint Hint, authToken string) (Client, string, error) {
	return f(ctx, hint, authToken)
}
