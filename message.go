// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role represents the role of a message sender.
type Role string

// Role constants for message senders.
const (
	RoleAgent Role = "agent"
	RoleUser  Role = "user"
)

// Part kinds.
const (
	PartKindText = "text"
	PartKindData = "data"
)

// KindMessage is the discriminator value of a serialized Message.
const KindMessage = "message"

// Part is one segment of message or artifact content. Only one of Text and Data
// is meaningful, selected by Kind.
type Part struct {
	Kind     string         `json:"kind"`
	Text     string         `json:"text,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewTextPart returns a text part.
func NewTextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// Validate ensures the part is well formed.
func (p Part) Validate() error {
	switch p.Kind {
	case PartKindText:
		return nil
	case PartKindData:
		if p.Data == nil {
			return fmt.Errorf("data part data cannot be nil")
		}
		return nil
	default:
		return fmt.Errorf("unsupported part kind: %q", p.Kind)
	}
}

// Message is a single user or agent utterance.
type Message struct {
	Role      Role           `json:"role"`
	Parts     []Part         `json:"parts"`
	MessageID string         `json:"messageId"`
	TaskID    string         `json:"taskId,omitempty"`
	ContextID string         `json:"contextId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Kind      string         `json:"kind"`
}

// NewAgentTextMessage creates an agent message containing a single text part.
func NewAgentTextMessage(text, contextID, taskID string) *Message {
	return &Message{
		Role:      RoleAgent,
		Parts:     []Part{NewTextPart(text)},
		MessageID: uuid.NewString(),
		TaskID:    taskID,
		ContextID: contextID,
		Kind:      KindMessage,
	}
}

// NewUserTextMessage creates a user message containing a single text part.
func NewUserTextMessage(text string) *Message {
	return &Message{
		Role:      RoleUser,
		Parts:     []Part{NewTextPart(text)},
		MessageID: uuid.NewString(),
		Kind:      KindMessage,
	}
}

// Validate ensures the message is well formed.
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if m.Role != RoleAgent && m.Role != RoleUser {
		return fmt.Errorf("invalid message role: %q", m.Role)
	}
	if len(m.Parts) == 0 {
		return fmt.Errorf("message must contain at least one part")
	}
	for i, part := range m.Parts {
		if err := part.Validate(); err != nil {
			return fmt.Errorf("message part at index %d is invalid: %w", i, err)
		}
	}
	return nil
}

// Text joins the text parts of the message with newlines.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	return partsText(m.Parts, "\n")
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.Parts = cloneParts(m.Parts)
	c.Metadata = cloneMetadata(m.Metadata)
	return &c
}

func partsText(parts []Part, sep string) string {
	var texts []string
	for _, p := range parts {
		if p.Kind == PartKindText {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, sep)
}

func cloneParts(parts []Part) []Part {
	if parts == nil {
		return nil
	}
	c := make([]Part, len(parts))
	for i, p := range parts {
		c[i] = p
		c[i].Data = cloneMetadata(p.Data)
		c[i].Metadata = cloneMetadata(p.Metadata)
	}
	return c
}
