// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package sse translates inference turn events into Server-Sent-Events frames
// for the streaming query endpoint.
//
// Two media types are supported. Under [MediaTypeJSON] every frame is
// "data: " followed by the JSON object {"event", "data"} and a blank line.
// Under [MediaTypeText] only rendered text is written, concatenated as is.
//
// The functions in this package hold no state. Frame ids are threaded through a
// [Sequence] and referenced documents through a [DocumentMap], both owned by
// the caller for the duration of one turn.
package sse

import (
	"fmt"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/go-a2a/a2a-gateway/internal/pool"
)

// Media types of the streaming query response.
const (
	MediaTypeJSON = "application/json"
	MediaTypeText = "text/plain"
)

// ContentType is the HTTP content type of every streaming query response.
const ContentType = "text/event-stream"

// Event names of structured frames.
const (
	EventStart      = "start"
	EventToken      = "token"
	EventToolCall   = "tool_call"
	EventToolResult = "tool_result"
	EventValidation = "validation"
	EventEnd        = "end"
	EventError      = "error"
)

// Token roles distinguishing the frames sharing the token event.
const (
	RoleInference    = "inference"
	RoleHeartbeat    = "heartbeat"
	RoleTurnComplete = "turn_complete"
)

// Frame is one structured SSE frame.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
	// AvailableQuotas is only set on the end frame.
	AvailableQuotas map[string]int64 `json:"available_quotas,omitzero"`
}

// Encode renders f in the SSE wire format.
func (f Frame) Encode() string {
	b, err := json.Marshal(f, json.Deterministic(true), jsontext.AllowInvalidUTF8(true))
	if err != nil {
		// Only a caller-provided metadata value can fail to encode. The frame
		// keeps its event, so a stream never gains a second end or error frame.
		b, _ = json.Marshal(Frame{
			Event:           f.Event,
			Data:            fmt.Sprint(f.Data),
			AvailableQuotas: f.AvailableQuotas,
		}, jsontext.AllowInvalidUTF8(true))
	}
	return pool.Frame(b)
}

// Sequence hands out frame ids in emission order.
type Sequence int

// Next returns the next frame id.
func (s *Sequence) Next() int {
	id := int(*s)
	*s++
	return id
}

// TokenData is the payload of token and validation frames.
type TokenData struct {
	ID    int    `json:"id"`
	Role  string `json:"role,omitempty"`
	Token string `json:"token"`
}

// ToolCallData is the payload of tool_call frames.
type ToolCallData struct {
	ID        int    `json:"id"`
	ToolName  string `json:"tool_name"`
	Arguments string `json:"arguments"`
}

// ToolResultData is the payload of tool_result frames. Exactly one of Summary
// and Response is set.
type ToolResultData struct {
	ID       int    `json:"id"`
	ToolName string `json:"tool_name"`
	Summary  string `json:"summary,omitempty"`
	Response string `json:"response,omitempty"`
}

// ReferencedDocument is a document cited in the end frame.
type ReferencedDocument struct {
	URL   string `json:"doc_url"`
	Title string `json:"doc_title"`
}

// EndData is the payload of the end frame.
type EndData struct {
	ReferencedDocuments []ReferencedDocument `json:"referenced_documents"`
	// Truncated is always null: truncation is not detected.
	Truncated    *bool `json:"truncated"`
	InputTokens  int   `json:"input_tokens"`
	OutputTokens int   `json:"output_tokens"`
}

// ErrorData is the payload of an error frame.
type ErrorData struct {
	StatusCode int    `json:"status_code"`
	Response   string `json:"response"`
	Cause      string `json:"cause"`
}
