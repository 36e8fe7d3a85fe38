// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package turntest provides scripted turn streams and resolvers for tests.
package turntest

import (
	"context"
	"io"
	"sync"

	"github.com/go-a2a/a2a-gateway/turn"
)

// Step is one scripted outcome of Recv: an event, or an error raised by the source.
type Step struct {
	Event turn.Event
	Err   error
	// Block makes Recv wait for ctx cancellation instead of returning.
	Block bool
}

// Script returns steps emitting events in order.
func Script(events ...turn.Event) []Step {
	steps := make([]Step, len(events))
	for i, ev := range events {
		steps[i] = Step{Event: ev}
	}
	return steps
}

// Stream is a scripted turn.Stream.
type Stream struct {
	mu      sync.Mutex
	steps   []Step
	pos     int
	session string
	closed  bool
	recvs   int
}

var _ turn.Stream = (*Stream)(nil)

// NewStream returns a stream replaying steps within session.
func NewStream(session string, steps ...Step) *Stream {
	return &Stream{steps: steps, session: session}
}

// Recv implements turn.Stream.
func (s *Stream) Recv(ctx context.Context) (turn.Event, error) {
	s.mu.Lock()
	s.recvs++
	if s.closed {
		s.mu.Unlock()
		return nil, io.ErrClosedPipe
	}
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.pos >= len(s.steps) {
		s.mu.Unlock()
		return nil, io.EOF
	}
	step := s.steps[s.pos]
	s.pos++
	s.mu.Unlock()

	if step.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Event, nil
}

// SessionID implements turn.Stream.
func (s *Stream) SessionID() string {
	return s.session
}

// Close implements turn.Stream.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Consumed reports how many steps were handed out.
func (s *Stream) Consumed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Client hands out prepared streams and records the requests it received.
type Client struct {
	mu       sync.Mutex
	streams  []*Stream
	requests []turn.Request
	// Err, when set, is returned by Turn instead of a stream.
	Err error
}

var _ turn.Client = (*Client)(nil)

// NewClient returns a client that serves streams in order, one per turn.
func NewClient(streams ...*Stream) *Client {
	return &Client{streams: streams}
}

// Turn implements turn.Client.
func (c *Client) Turn(ctx context.Context, req turn.Request) (turn.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.Err != nil {
		return nil, c.Err
	}
	if len(c.streams) == 0 {
		return NewStream(req.SessionID), nil
	}
	s := c.streams[0]
	c.streams = c.streams[1:]
	if s.session == "" {
		s.session = req.SessionID
	}
	return s, nil
}

// Requests returns the turn requests received so far.
func (c *Client) Requests() []turn.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]turn.Request(nil), c.requests...)
}

// Resolver returns a resolver that always selects client as model.
func Resolver(client turn.Client, model string) turn.Resolver {
	return turn.ResolverFunc(func(ctx context.Context, hint turn.Hint, authToken string) (turn.Client, string, error) {
		if hint.Model != "" {
			return client, hint.Model, nil
		}
		return client, model, nil
	})
}

// FailingResolver returns a resolver that always fails with err.
func FailingResolver(err error) turn.Resolver {
	return turn.ResolverFunc(func(context.Context, turn.Hint, string) (turn.Client, string, error) {
		return nil, "", err
	})
}
