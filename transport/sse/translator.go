// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package sse

import (
	"fmt"
	"strings"

	a2a "github.com/go-a2a/a2a-gateway"
	"github.com/go-a2a/a2a-gateway/turn"
)

// Tool names with dedicated renderings.
const (
	ToolKnowledgeSearch = "knowledge_search"
	ToolQueryFromMemory = "query_from_memory"
)

// NoViolation is the validation token of a passed shield check.
const NoViolation = "No Violation"

// ViolationRecorder counts shield violations.
type ViolationRecorder interface {
	ValidationError()
}

// Start returns the first frame of every stream.
func Start(conversationID string) string {
	return Frame{Event: EventStart, Data: map[string]string{"conversation_id": conversationID}}.Encode()
}

// Heartbeat returns an empty token frame. It keeps the connection alive while
// the backend is silent and marks turn and shield progress.
func Heartbeat(seq *Sequence) string {
	return Frame{Event: EventToken, Data: TokenData{ID: seq.Next(), Role: RoleHeartbeat}}.Encode()
}

// Token returns the frame of one text delta.
func Token(seq *Sequence, text string) string {
	return Frame{Event: EventToken, Data: TokenData{ID: seq.Next(), Role: RoleInference, Token: text}}.Encode()
}

// ShieldResult returns the validation frame of a shield check. A violation is
// counted on rec, which may be nil.
func ShieldResult(seq *Sequence, violation *turn.Violation, rec ViolationRecorder) string {
	token := NoViolation
	if violation != nil {
		if rec != nil {
			rec.ValidationError()
		}
		token = fmt.Sprintf("Violation: %s (Metadata: %v)", violation.UserMessage, violation.Metadata)
	}
	return Frame{Event: EventValidation, Data: TokenData{ID: seq.Next(), Role: "shield", Token: token}}.Encode()
}

// ToolCallStarted returns the empty tool_call frame of a tool step start.
func ToolCallStarted(seq *Sequence) string {
	return Frame{Event: EventToolCall, Data: ToolCallData{ID: seq.Next()}}.Encode()
}

// ToolExecution returns one tool_call frame per call followed by one
// tool_result frame per response of a completed tool step. Knowledge search
// metadata blocks are merged into docs.
func ToolExecution(seq *Sequence, step turn.ToolExecution, docs *DocumentMap) []string {
	frames := make([]string, 0, len(step.Calls)+len(step.Responses))
	for _, call := range step.Calls {
		frames = append(frames, Frame{Event: EventToolCall, Data: ToolCallData{
			ID:        seq.Next(),
			ToolName:  call.ToolName,
			Arguments: call.Arguments,
		}}.Encode())
	}
	for _, resp := range step.Responses {
		frames = append(frames, Frame{Event: EventToolResult, Data: toolResult(seq.Next(), resp, docs)}.Encode())
	}
	return frames
}

func toolResult(id int, resp turn.ToolResponse, docs *DocumentMap) ToolResultData {
	data := ToolResultData{ID: id, ToolName: resp.ToolName}
	switch resp.ToolName {
	case ToolKnowledgeSearch:
		for _, item := range resp.Content {
			if item.Type == a2a.PartKindText && docs != nil {
				docs.extractMetadata(item.Text)
			}
		}
		if len(resp.Content) > 0 {
			data.Summary, _, _ = strings.Cut(resp.Content[0].Text, "\n")
		}
	case ToolQueryFromMemory:
		var n int
		for _, item := range resp.Content {
			n += len(item.Text)
		}
		data.Summary = fmt.Sprintf("fetched %d bytes from memory", n)
	default:
		data.Response = flatten(resp.Content)
	}
	return data
}

func flatten(items []turn.ContentItem) string {
	texts := make([]string, 0, len(items))
	for _, item := range items {
		if item.Type == a2a.PartKindText {
			texts = append(texts, item.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// TurnComplete returns the full assistant text as one token frame, for
// surfaces without incremental deltas.
func TurnComplete(seq *Sequence, text string) string {
	return Frame{Event: EventToken, Data: TokenData{ID: seq.Next(), Role: RoleTurnComplete, Token: text}}.Encode()
}

// End returns the terminal frame of a successful stream.
//
// Documents recorded in docs come first, followed by referenced that were not
// already listed. Under MediaTypeText it renders one "title: url" block per
// document, or nothing.
func End(docs *DocumentMap, usage turn.Usage, quotas map[string]int64, referenced []turn.Document, mediaType string) string {
	all := docs.Documents()
	seen := make(map[string]bool, len(all))
	for _, d := range all {
		seen[d.URL] = true
	}
	for _, d := range referenced {
		if d.URL == "" || seen[d.URL] {
			continue
		}
		seen[d.URL] = true
		all = append(all, ReferencedDocument{URL: d.URL, Title: d.Title})
	}

	if mediaType == MediaTypeText {
		var sb strings.Builder
		for _, d := range all {
			if d.URL != "" && d.Title != "" {
				fmt.Fprintf(&sb, "\n\n---\n\n%s: %s", d.Title, d.URL)
			}
		}
		return sb.String()
	}

	if quotas == nil {
		quotas = map[string]int64{}
	}
	return Frame{
		Event: EventEnd,
		Data: EndData{
			ReferencedDocuments: all,
			InputTokens:         usage.InputTokens,
			OutputTokens:        usage.OutputTokens,
		},
		AvailableQuotas: quotas,
	}.Encode()
}

// Error returns the terminal frame of a failed stream.
func Error(err error, mediaType string) string {
	cls := a2a.Classify(err)
	if mediaType == MediaTypeText {
		return cls.StatusMessage()
	}
	if cls.Detail != nil {
		return Frame{Event: EventError, Data: cls.Detail}.Encode()
	}
	return Frame{Event: EventError, Data: ErrorData{
		StatusCode: cls.StatusCode,
		Response:   cls.Response,
		Cause:      cls.Cause,
	}}.Encode()
}
