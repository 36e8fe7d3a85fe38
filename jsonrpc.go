// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"github.com/go-json-experiment/json/jsontext"
)

// JSONRPCVersion is the only JSON-RPC version accepted.
const JSONRPCVersion = "2.0"

// A2A RPC method names.
const (
	// MethodMessageSend runs a turn and returns the resulting task.
	MethodMessageSend = "message/send"
	// MethodMessageStream runs a turn and streams its events.
	MethodMessageStream = "message/stream"
	// MethodTasksGet returns a stored task.
	MethodTasksGet = "tasks/get"
)

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	// JSONRPC version, always "2.0".
	JSONRPC string `json:"jsonrpc"`
	// ID is echoed verbatim in the response: a string, a number or null.
	ID jsontext.Value `json:"id,omitempty"`
	// Method identifies the operation to perform.
	Method string `json:"method"`
	// Params contains parameters for the method.
	Params jsontext.Value `json:"params,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *JSONRPCError) Error() string {
	return e.Message
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      jsontext.Value `json:"id"`
	// Result and Error are mutually exclusive.
	Result any           `json:"result,omitempty"`
	Error  *JSONRPCError `json:"error,omitempty"`
}

// NewJSONRPCResult returns a successful response to the request with id.
func NewJSONRPCResult(id jsontext.Value, result any) *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: nullID(id), Result: result}
}

// NewJSONRPCErrorResponse returns an error response to the request with id.
func NewJSONRPCErrorResponse(id jsontext.Value, err *JSONRPCError) *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: nullID(id), Error: err}
}

func nullID(id jsontext.Value) jsontext.Value {
	if len(id) == 0 {
		return jsontext.Value("null")
	}
	return id
}

// JSON-RPC error codes.
const (
	JSONParseErrorCode      = -32700
	InvalidRequestErrorCode = -32600
	MethodNotFoundErrorCode = -32601
	InvalidParamsErrorCode  = -32602
	InternalErrorCode       = -32603

	TaskNotFoundErrorCode            = -32001
	UnsupportedOperationErrorCode    = -32004
	ContentTypeNotSupportedErrorCode = -32005
)

// NewJSONParseError returns the error for an unparsable payload.
func NewJSONParseError() *JSONRPCError {
	return &JSONRPCError{Code: JSONParseErrorCode, Message: "Invalid JSON payload"}
}

// NewInvalidRequestError returns the error for a malformed request object.
func NewInvalidRequestError(detail string) *JSONRPCError {
	return &JSONRPCError{Code: InvalidRequestErrorCode, Message: "Request payload validation error", Data: detail}
}

// NewMethodNotFoundError returns the error for an unknown method.
func NewMethodNotFoundError(method string) *JSONRPCError {
	return &JSONRPCError{Code: MethodNotFoundErrorCode, Message: "Method not found", Data: method}
}

// NewInvalidParamsError returns the error for invalid method parameters.
func NewInvalidParamsError(detail string) *JSONRPCError {
	return &JSONRPCError{Code: InvalidParamsErrorCode, Message: "Invalid parameters", Data: detail}
}

// NewInternalError returns the error for an unexpected server failure.
func NewInternalError(detail string) *JSONRPCError {
	return &JSONRPCError{Code: InternalErrorCode, Message: "Internal error", Data: detail}
}

// NewTaskNotFoundError returns the error for an unknown task.
func NewTaskNotFoundError(taskID string) *JSONRPCError {
	return &JSONRPCError{Code: TaskNotFoundErrorCode, Message: "Task not found", Data: taskID}
}

// MessageSendParams are the parameters of message/send and message/stream.
type MessageSendParams struct {
	Message *Message `json:"message"`
	// Metadata may carry "model" and "provider" hints.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate ensures the params carry a valid message.
func (p *MessageSendParams) Validate() error {
	if p == nil || p.Message == nil {
		return NewInputError("message", "message cannot be empty")
	}
	if err := p.Message.Validate(); err != nil {
		return NewInputError("message", "%v", err)
	}
	return nil
}

// TaskQueryParams are the parameters of tasks/get.
type TaskQueryParams struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
