// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package pool provides typed object pooling and the buffer pool used to
// render stream frames.
package pool

import (
	"bytes"
	"sync"
)

// maxPooledBuffer keeps one oversized frame from pinning memory in the pool.
const maxPooledBuffer = 64 << 10

// Pool is a generics wrapper around [sync.Pool].
type Pool[T any] struct {
	p    sync.Pool
	keep func(T) bool
}

// Resetter is implemented by values that must be cleared before reuse.
type Resetter interface {
	Reset()
}

// New returns a Pool constructing values with fn when empty.
func New[T any](fn func() T) *Pool[T] {
	return &Pool[T]{
		p: sync.Pool{
			New: func() any { return fn() },
		},
	}
}

// Get returns a pooled value or a new one.
func (p *Pool[T]) Get() T {
	return p.p.Get().(T)
}

// Put resets x and returns it to the pool.
func (p *Pool[T]) Put(x T) {
	if p.keep != nil && !p.keep(x) {
		return
	}
	if r, ok := any(x).(Resetter); ok {
		r.Reset()
	}
	p.p.Put(x)
}

// Bytes pools the buffers frames are rendered into.
var Bytes = func() *Pool[*bytes.Buffer] {
	p := New(func() *bytes.Buffer { return new(bytes.Buffer) })
	p.keep = func(b *bytes.Buffer) bool { return b.Cap() <= maxPooledBuffer }
	return p
}()

// Frame renders "data: " + payload + "\n\n" using a pooled buffer.
func Frame(payload []byte) string {
	buf := Bytes.Get()
	defer Bytes.Put(buf)
	buf.Grow(len(payload) + 8)
	buf.WriteString("data: ")
	buf.Write(payload)
	buf.WriteString("\n\n")
	return buf.String()
}
