// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"syscall"
)

// Error taxonomy shared by the push-protocol and SSE bridges.
var (
	// ErrInput reports malformed or missing turn input.
	ErrInput = errors.New("invalid turn input")

	// ErrBackendUnavailable reports that the inference backend cannot be reached.
	ErrBackendUnavailable = errors.New("inference backend unavailable")

	// ErrBackendRateLimited reports a quota or rate limit rejection.
	ErrBackendRateLimited = errors.New("inference backend rate limited")

	// ErrBackendFailure reports any other upstream status error.
	ErrBackendFailure = errors.New("inference backend failure")

	// ErrStorageUnavailable reports a conversation state store failure.
	ErrStorageUnavailable = errors.New("conversation state storage unavailable")

	// ErrInternal reports an unexpected failure inside the gateway.
	ErrInternal = errors.New("internal failure")
)

// Category is a closed set of failure categories.
type Category string

const (
	CategoryInput              Category = "input"
	CategoryBackendUnavailable Category = "backend_unavailable"
	CategoryBackendRateLimited Category = "backend_rate_limited"
	CategoryBackendFailure     Category = "backend_failure"
	CategoryStorageUnavailable Category = "storage_unavailable"
	CategoryInternal           Category = "internal"
)

func (c Category) sentinel() error {
	switch c {
	case CategoryInput:
		return ErrInput
	case CategoryBackendUnavailable:
		return ErrBackendUnavailable
	case CategoryBackendRateLimited:
		return ErrBackendRateLimited
	case CategoryBackendFailure:
		return ErrBackendFailure
	case CategoryStorageUnavailable:
		return ErrStorageUnavailable
	default:
		return ErrInternal
	}
}

// InputError represents a malformed or missing turn input.
type InputError struct {
	Field   string
	Message string
}

// NewInputError creates a new InputError.
func NewInputError(field, format string, args ...any) *InputError {
	return &InputError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *InputError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is reports whether target is ErrInput.
func (e *InputError) Is(target error) bool {
	return target == ErrInput
}

// BackendError is a categorized failure of the inference backend.
type BackendError struct {
	Category   Category
	StatusCode int
	// Model is the model the failing call was addressed to, if known.
	Model string
	Err   error
}

// NewBackendUnavailableError wraps a connectivity failure.
func NewBackendUnavailableError(err error) *BackendError {
	return &BackendError{Category: CategoryBackendUnavailable, StatusCode: http.StatusServiceUnavailable, Err: err}
}

// NewRateLimitError wraps a quota or rate limit failure for model.
func NewRateLimitError(model string, err error) *BackendError {
	return &BackendError{Category: CategoryBackendRateLimited, StatusCode: http.StatusTooManyRequests, Model: model, Err: err}
}

// NewBackendStatusError wraps a generic upstream status error.
func NewBackendStatusError(statusCode int, err error) *BackendError {
	return &BackendError{Category: CategoryBackendFailure, StatusCode: statusCode, Err: err}
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Err == nil {
		return string(e.Category)
	}
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

// Unwrap returns the underlying error.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is matches the taxonomy sentinel of the error's category.
func (e *BackendError) Is(target error) bool {
	return target == e.Category.sentinel()
}

// ProtocolError is an error that already carries its caller-facing representation.
type ProtocolError struct {
	StatusCode int
	Detail     map[string]any
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error %d: %v", e.StatusCode, e.Detail)
}

// Classification is the protocol-neutral rendering of a failure.
type Classification struct {
	Category   Category
	StatusCode int
	Response   string
	Cause      string
	// Detail is the structured payload of an already-classified ProtocolError.
	Detail map[string]any
}

// StatusMessage renders the caller-safe text of a failed push-protocol status.
func (c Classification) StatusMessage() string {
	if c.Cause == "" {
		return "Error: " + c.Response
	}
	return fmt.Sprintf("Error: %s: %s", c.Response, c.Cause)
}

// statusCoder is implemented by SDK errors that carry an HTTP status code.
type statusCoder interface {
	StatusCode() int
}

// Classify maps err onto the failure taxonomy. The mapping is total: any error,
// including nil, yields a Classification.
func Classify(err error) Classification {
	if err == nil {
		return Classification{
			Category:   CategoryInternal,
			StatusCode: http.StatusInternalServerError,
			Response:   "Internal server error",
		}
	}

	var perr *ProtocolError
	if errors.As(err, &perr) {
		c := Classification{
			Category:   CategoryBackendFailure,
			StatusCode: perr.StatusCode,
			Detail:     perr.Detail,
		}
		c.Response, _ = perr.Detail["response"].(string)
		c.Cause, _ = perr.Detail["cause"].(string)
		return c
	}

	var ierr *InputError
	if errors.As(err, &ierr) {
		return Classification{
			Category:   CategoryInput,
			StatusCode: http.StatusUnprocessableEntity,
			Response:   "Invalid request",
			Cause:      ierr.Error(),
		}
	}

	// Store failures often wrap network errors; they must not read as backend outages.
	if errors.Is(err, ErrStorageUnavailable) {
		return Classification{
			Category:   CategoryBackendFailure,
			StatusCode: http.StatusInternalServerError,
			Response:   "Internal server error",
			Cause:      "Unable to access conversation state",
		}
	}

	var berr *BackendError
	if !errors.As(err, &berr) {
		berr = categorize(err)
	}
	if berr != nil {
		return classifyBackend(berr)
	}

	return Classification{
		Category:   CategoryInternal,
		StatusCode: http.StatusInternalServerError,
		Response:   "Internal server error",
		Cause:      err.Error(),
	}
}

func classifyBackend(berr *BackendError) Classification {
	switch berr.Category {
	case CategoryBackendUnavailable:
		return Classification{
			Category:   CategoryBackendUnavailable,
			StatusCode: http.StatusServiceUnavailable,
			Response:   "Unable to connect to the inference backend",
			Cause:      "The inference backend cannot be reached",
		}
	case CategoryBackendRateLimited:
		cause := "The quota has been exceeded"
		if berr.Model != "" {
			cause = fmt.Sprintf("The model quota has been exceeded for model %s", berr.Model)
		}
		return Classification{
			Category:   CategoryBackendRateLimited,
			StatusCode: http.StatusTooManyRequests,
			Response:   "The quota has been exceeded",
			Cause:      cause,
		}
	default:
		code := berr.StatusCode
		if code < 400 {
			code = http.StatusInternalServerError
		}
		cause := ""
		if berr.Err != nil {
			cause = berr.Err.Error()
		}
		return Classification{
			Category:   CategoryBackendFailure,
			StatusCode: code,
			Response:   "The inference backend returned an error",
			Cause:      cause,
		}
	}
}

// categorize applies heuristics to uncategorized errors from SDKs and the network
// stack. It returns nil when err does not look like a backend failure.
func categorize(err error) *BackendError {
	if errors.Is(err, ErrBackendUnavailable) {
		return NewBackendUnavailableError(err)
	}
	if errors.Is(err, ErrBackendRateLimited) {
		return NewRateLimitError("", err)
	}
	if errors.Is(err, ErrBackendFailure) {
		return NewBackendStatusError(http.StatusInternalServerError, err)
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		if sc.StatusCode() == http.StatusTooManyRequests {
			return NewRateLimitError("", err)
		}
		return NewBackendStatusError(sc.StatusCode(), err)
	}

	if isConnectivityError(err) {
		return NewBackendUnavailableError(err)
	}
	return nil
}

func isConnectivityError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
