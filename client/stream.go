// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/go-json-experiment/json"

	"github.com/go-a2a/a2a-gateway/server/event"
)

// maxFrameSize bounds one SSE line.
const maxFrameSize = 1 << 20

// Stream reads the events of one streamed turn.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner

	mu     sync.Mutex
	done   bool
	closed bool
}

func newStream(body io.ReadCloser) *Stream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64<<10), maxFrameSize)
	return &Stream{body: body, scanner: sc}
}

// Next returns the next event. It returns io.EOF after the final status
// update or when the server ends the stream. A JSON-RPC error frame is
// returned as a *a2a.JSONRPCError and ends the stream.
func (s *Stream) Next(ctx context.Context) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done || s.closed {
		return nil, io.EOF
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.scanner.Scan() {
			s.done = true
			if err := s.scanner.Err(); err != nil {
				return nil, &NetworkError{Err: err}
			}
			return nil, io.EOF
		}

		data, ok := bytes.CutPrefix(s.scanner.Bytes(), []byte("data:"))
		if !ok {
			// blank separators, comments and unnamed fields
			continue
		}
		ev, err := decodeEvent(bytes.TrimSpace(data))
		if err != nil {
			s.done = true
			return nil, err
		}
		if event.IsFinalEvent(ev) {
			s.done = true
		}
		return ev, nil
	}
}

// Close releases the connection. Closing before the final event cancels the
// turn on the server.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

func decodeEvent(data []byte) (event.Event, error) {
	var frame response
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if frame.Error != nil {
		return nil, frame.Error
	}

	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(frame.Result, &head); err != nil {
		return nil, fmt.Errorf("decode event kind: %w", err)
	}

	var ev event.Event
	switch head.Kind {
	case event.KindStatusUpdate:
		ev = new(event.TaskStatusUpdateEvent)
	case event.KindArtifactUpdate:
		ev = new(event.TaskArtifactUpdateEvent)
	default:
		return nil, fmt.Errorf("unknown event kind %q", head.Kind)
	}
	if err := json.Unmarshal(frame.Result, ev); err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.Kind, err)
	}
	return ev, nil
}
