// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package sse

import (
	"fmt"
	"regexp"

	"github.com/go-json-experiment/json"
)

// Keys of a knowledge search metadata block.
const (
	metaDocumentID = "document_id"
	metaDocsURL    = "docs_url"
	metaTitle      = "title"
)

// metadataBlock matches the inline metadata blocks of knowledge search results.
var metadataBlock = regexp.MustCompile(`\nMetadata: (\{.+})\n`)

// DocumentMap accumulates the metadata of documents retrieved during a turn,
// keyed by document id, in first-seen order.
type DocumentMap struct {
	order   []string
	entries map[string]map[string]any
}

// NewDocumentMap returns an empty DocumentMap.
func NewDocumentMap() *DocumentMap {
	return &DocumentMap{entries: make(map[string]map[string]any)}
}

// Merge records meta under its document_id. Blocks without a document id are
// ignored. A later block for the same id replaces the earlier one in place.
func (m *DocumentMap) Merge(meta map[string]any) {
	id, ok := meta[metaDocumentID]
	if !ok {
		return
	}
	key := fmt.Sprint(id)
	if _, seen := m.entries[key]; !seen {
		m.order = append(m.order, key)
	}
	m.entries[key] = meta
}

// Len returns the number of documents recorded.
func (m *DocumentMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Get returns the metadata recorded for id.
func (m *DocumentMap) Get(id string) (map[string]any, bool) {
	if m == nil {
		return nil, false
	}
	meta, ok := m.entries[id]
	return meta, ok
}

// Documents returns the recorded documents that carry both a URL and a title.
func (m *DocumentMap) Documents() []ReferencedDocument {
	if m == nil {
		return nil
	}
	var docs []ReferencedDocument
	for _, key := range m.order {
		meta := m.entries[key]
		url, uok := meta[metaDocsURL].(string)
		title, tok := meta[metaTitle].(string)
		if uok && tok {
			docs = append(docs, ReferencedDocument{URL: url, Title: title})
		}
	}
	return docs
}

// extractMetadata merges every metadata block found in text into m.
// Blocks that parse neither as JSON nor as a Python dict literal are skipped.
func (m *DocumentMap) extractMetadata(text string) {
	for _, match := range metadataBlock.FindAllStringSubmatch(text, -1) {
		meta, err := parseMetadataBlock(match[1])
		if err != nil {
			continue
		}
		m.Merge(meta)
	}
}

func parseMetadataBlock(block string) (map[string]any, error) {
	var meta map[string]any
	if err := json.Unmarshal([]byte(block), &meta); err == nil {
		return meta, nil
	}
	converted, err := pythonLiteralToJSON(block)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(converted), &meta); err != nil {
		return nil, fmt.Errorf("parse metadata block: %w", err)
	}
	return meta, nil
}
