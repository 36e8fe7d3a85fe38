// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package event

import "errors"

var (
	// ErrQueueClosed is returned when attempting to use a closed queue.
	ErrQueueClosed = errors.New("event queue is closed")

	// ErrDequeueTimeout is returned when no event arrived within the receive timeout.
	ErrDequeueTimeout = errors.New("event queue receive timed out")

	// ErrInvalidQueueSize is returned when attempting to create a queue with
	// invalid size.
	ErrInvalidQueueSize = errors.New("max queue size must be greater than 0")
)
