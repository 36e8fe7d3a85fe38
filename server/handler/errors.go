// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	a2a "github.com/go-a2a/a2a-gateway"
)

// HTTPError is an error returned to a caller as a JSON HTTP response, before
// any streaming began.
type HTTPError struct {
	StatusCode int    `json:"-"`
	Response   string `json:"response"`
	Cause      string `json:"cause"`
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Cause == "" {
		return e.Response
	}
	return fmt.Sprintf("%s: %s", e.Response, e.Cause)
}

// NewHTTPError returns the HTTP rendering of err.
func NewHTTPError(err error) *HTTPError {
	var herr *HTTPError
	if errors.As(err, &herr) {
		return herr
	}
	cls := a2a.Classify(err)
	return &HTTPError{StatusCode: cls.StatusCode, Response: cls.Response, Cause: cls.Cause}
}

// writeHTTPError writes err as {"detail": {"response", "cause"}}.
func writeHTTPError(w http.ResponseWriter, err error) {
	herr := NewHTTPError(err)
	var detail any = herr
	var perr *a2a.ProtocolError
	if errors.As(err, &perr) {
		detail = perr.Detail
	}
	writeJSON(w, herr.StatusCode, map[string]any{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.MarshalWrite(w, v, json.Deterministic(true), jsontext.AllowInvalidUTF8(true))
}

// toRPCError maps err onto a JSON-RPC error object.
func toRPCError(err error) *a2a.JSONRPCError {
	var rpcErr *a2a.JSONRPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	var nf a2a.TaskNotFoundError
	if errors.As(err, &nf) {
		return a2a.NewTaskNotFoundError(nf.TaskID)
	}
	if errors.Is(err, a2a.ErrInput) {
		return a2a.NewInvalidParamsError(err.Error())
	}
	return a2a.NewInternalError(a2a.Classify(err).StatusMessage())
}
