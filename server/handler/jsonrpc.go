// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	a2a "github.com/go-a2a/a2a-gateway"
	"github.com/go-a2a/a2a-gateway/auth"
	"github.com/go-a2a/a2a-gateway/internal/pool"
)

// maxRequestBytes bounds the size of a JSON-RPC request body.
const maxRequestBytes = 4 << 20

// errEncode reports a stream frame that could not be rendered. Nothing was
// written for it.
var errEncode = errors.New("encode stream frame")

// JSONRPCHandler serves the push protocol as JSON-RPC 2.0 over HTTP POST.
// message/stream responses are SSE streams of JSON-RPC responses, one per event.
type JSONRPCHandler struct {
	handler   RequestHandler
	agentCard *a2a.AgentCard
	logger    *slog.Logger
}

var _ http.Handler = (*JSONRPCHandler)(nil)

// JSONRPCHandlerOption configures a JSONRPCHandler.
type JSONRPCHandlerOption func(*JSONRPCHandler)

// WithAgentCard sets the agent card used for capability checks.
func WithAgentCard(card *a2a.AgentCard) JSONRPCHandlerOption {
	return func(h *JSONRPCHandler) {
		h.agentCard = card
	}
}

// WithLogger sets the logger of the handler.
func WithLogger(logger *slog.Logger) JSONRPCHandlerOption {
	return func(h *JSONRPCHandler) {
		h.logger = logger
	}
}

// NewJSONRPCHandler returns a JSONRPCHandler dispatching to handler.
func NewJSONRPCHandler(handler RequestHandler, opts ...JSONRPCHandlerOption) *JSONRPCHandler {
	if handler == nil {
		panic("request handler cannot be nil")
	}
	h := &JSONRPCHandler{handler: handler, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements [http.Handler].
func (h *JSONRPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		h.reply(w, a2a.NewJSONRPCErrorResponse(nil, a2a.NewInvalidRequestError(err.Error())))
		return
	}

	var req a2a.JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.reply(w, a2a.NewJSONRPCErrorResponse(nil, a2a.NewJSONParseError()))
		return
	}
	if req.JSONRPC != a2a.JSONRPCVersion || req.Method == "" {
		h.reply(w, a2a.NewJSONRPCErrorResponse(req.ID, a2a.NewInvalidRequestError("jsonrpc must be \"2.0\" and method must be set")))
		return
	}

	switch req.Method {
	case a2a.MethodMessageSend:
		h.handleMessageSend(w, r, &req)
	case a2a.MethodMessageStream:
		h.handleMessageStream(w, r, &req)
	case a2a.MethodTasksGet:
		h.handleGetTask(w, r, &req)
	default:
		h.reply(w, a2a.NewJSONRPCErrorResponse(req.ID, a2a.NewMethodNotFoundError(req.Method)))
	}
}

func (h *JSONRPCHandler) handleMessageSend(w http.ResponseWriter, r *http.Request, req *a2a.JSONRPCRequest) {
	var params a2a.MessageSendParams
	if err := decodeParams(req.Params, &params); err != nil {
		h.reply(w, a2a.NewJSONRPCErrorResponse(req.ID, err))
		return
	}

	t, err := h.handler.OnMessageSend(r.Context(), &params, auth.UserFromContext(r.Context()))
	if err != nil {
		h.logger.WarnContext(r.Context(), "message/send failed", slog.Any("error", err))
		h.reply(w, a2a.NewJSONRPCErrorResponse(req.ID, toRPCError(err)))
		return
	}
	h.reply(w, a2a.NewJSONRPCResult(req.ID, t))
}

func (h *JSONRPCHandler) handleMessageStream(w http.ResponseWriter, r *http.Request, req *a2a.JSONRPCRequest) {
	if h.agentCard != nil && !h.agentCard.Capabilities.Streaming {
		h.reply(w, a2a.NewJSONRPCErrorResponse(req.ID, &a2a.JSONRPCError{
			Code:    a2a.UnsupportedOperationErrorCode,
			Message: "Streaming is not supported by this agent",
		}))
		return
	}

	var params a2a.MessageSendParams
	if err := decodeParams(req.Params, &params); err != nil {
		h.reply(w, a2a.NewJSONRPCErrorResponse(req.ID, err))
		return
	}

	ctx := r.Context()
	stream, err := h.handler.OnMessageStream(ctx, &params, auth.UserFromContext(ctx))
	if err != nil {
		h.reply(w, a2a.NewJSONRPCErrorResponse(req.ID, toRPCError(err)))
		return
	}
	defer stream.Close()

	sw := newStreamWriter(w)
	for {
		ev, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return
		}
		if err != nil {
			// The turn stalled or broke; end the stream with an error response.
			h.logger.ErrorContext(ctx, "message/stream aborted", slog.String("task_id", stream.Task().ID), slog.Any("error", err))
			_ = sw.writeData(a2a.NewJSONRPCErrorResponse(req.ID, a2a.NewInternalError(err.Error())))
			return
		}
		if err := sw.writeData(a2a.NewJSONRPCResult(req.ID, ev)); err != nil {
			if errors.Is(err, errEncode) {
				h.logger.ErrorContext(ctx, "message/stream aborted", slog.String("task_id", stream.Task().ID), slog.Any("error", err))
				_ = sw.writeData(a2a.NewJSONRPCErrorResponse(req.ID, a2a.NewInternalError("Unable to encode stream event")))
				return
			}
			h.logger.DebugContext(ctx, "message/stream client gone", slog.Any("error", err))
			return
		}
	}
}

func (h *JSONRPCHandler) handleGetTask(w http.ResponseWriter, r *http.Request, req *a2a.JSONRPCRequest) {
	var params a2a.TaskQueryParams
	if err := decodeParams(req.Params, &params); err != nil {
		h.reply(w, a2a.NewJSONRPCErrorResponse(req.ID, err))
		return
	}

	t, err := h.handler.OnGetTask(r.Context(), &params)
	if err != nil {
		h.reply(w, a2a.NewJSONRPCErrorResponse(req.ID, toRPCError(err)))
		return
	}
	h.reply(w, a2a.NewJSONRPCResult(req.ID, t))
}

func (h *JSONRPCHandler) reply(w http.ResponseWriter, resp *a2a.JSONRPCResponse) {
	writeJSON(w, http.StatusOK, resp)
}

// decodeParams unmarshals raw into v, reporting failures as invalid params.
func decodeParams(raw jsontext.Value, v any) *a2a.JSONRPCError {
	if len(raw) == 0 {
		return a2a.NewInvalidParamsError("params are required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return a2a.NewInvalidParamsError(err.Error())
	}
	return nil
}

// AgentCardHandler serves the agent card.
func AgentCardHandler(card *a2a.AgentCard) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, card)
	})
}

// streamWriter writes SSE frames and flushes after each one.
type streamWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newStreamWriter(w http.ResponseWriter) *streamWriter {
	f, _ := w.(http.Flusher)
	return &streamWriter{w: w, flusher: f}
}

func (s *streamWriter) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

// writeData writes v as one "data:" frame.
func (s *streamWriter) writeData(v any) error {
	b, err := json.Marshal(v, json.Deterministic(true), jsontext.AllowInvalidUTF8(true))
	if err != nil {
		return fmt.Errorf("%w: %w", errEncode, err)
	}
	return s.write(pool.Frame(b))
}

// write writes a pre-rendered chunk.
func (s *streamWriter) write(chunk string) error {
	s.start()
	if chunk == "" {
		return nil
	}
	if _, err := io.WriteString(s.w, chunk); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
