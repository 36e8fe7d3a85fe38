// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"fmt"

	"github.com/google/uuid"
)

// Artifact is an accumulating unit of turn output delivered to the push protocol.
// Artifacts are append-only: a chunk either extends the previous chunk of the same
// ArtifactID or replaces it, never deletes it.
type Artifact struct {
	ArtifactID  string         `json:"artifactId"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Parts       []Part         `json:"parts"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewArtifactID returns a fresh artifact identifier.
func NewArtifactID() string {
	return uuid.NewString()
}

// NewTextArtifact creates an artifact carrying a single text part.
// An empty artifactID is generated.
func NewTextArtifact(artifactID, name, text string) *Artifact {
	if artifactID == "" {
		artifactID = NewArtifactID()
	}
	return &Artifact{
		ArtifactID: artifactID,
		Name:       name,
		Parts:      []Part{NewTextPart(text)},
	}
}

// Validate ensures the artifact is well formed.
func (a *Artifact) Validate() error {
	if a == nil {
		return fmt.Errorf("artifact cannot be nil")
	}
	if a.ArtifactID == "" {
		return fmt.Errorf("artifact ID cannot be empty")
	}
	if len(a.Parts) == 0 {
		return fmt.Errorf("artifact must contain at least one part")
	}
	for i, part := range a.Parts {
		if err := part.Validate(); err != nil {
			return fmt.Errorf("artifact part at index %d is invalid: %w", i, err)
		}
	}
	return nil
}

// Text joins the text parts of the artifact.
func (a *Artifact) Text() string {
	if a == nil {
		return ""
	}
	return partsText(a.Parts, "")
}

// Clone returns a deep copy of the artifact.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	c := *a
	c.Parts = cloneParts(a.Parts)
	c.Metadata = cloneMetadata(a.Metadata)
	return &c
}
