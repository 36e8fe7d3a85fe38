// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/uuid"

	a2a "github.com/go-a2a/a2a-gateway"
	"github.com/go-a2a/a2a-gateway/auth"
	"github.com/go-a2a/a2a-gateway/internal/metrics"
	"github.com/go-a2a/a2a-gateway/server/agent_execution"
	"github.com/go-a2a/a2a-gateway/server/task"
	"github.com/go-a2a/a2a-gateway/transport/sse"
	"github.com/go-a2a/a2a-gateway/turn"
)

// DefaultKeepalive is the interval of heartbeat frames while the backend is silent.
const DefaultKeepalive = 15 * time.Second

// QueryRequest is the body of a streaming query.
type QueryRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
	Model          string `json:"model,omitempty"`
	Provider       string `json:"provider,omitempty"`
	SystemPrompt   string `json:"system_prompt,omitempty"`
	MediaType      string `json:"media_type,omitempty"`
}

// QuotaReporter reports the quotas left to a user.
type QuotaReporter interface {
	AvailableQuotas(ctx context.Context, user auth.User) (map[string]int64, error)
}

// QueryHandlerConfig configures a QueryHandler.
type QueryHandlerConfig struct {
	Resolver turn.Resolver
	// Store keeps the conversation to session mapping shared with the push protocol.
	Store task.Store
	// Quotas is optional.
	Quotas QuotaReporter
	// SystemPrompt is used when the request carries none.
	SystemPrompt string
	// Keepalive is the heartbeat interval. Zero means DefaultKeepalive and a
	// negative value disables heartbeats.
	Keepalive time.Duration

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// QueryHandler serves streaming queries as SSE.
//
// Failures to resolve the backend or start the turn are returned as JSON HTTP
// errors. Once streaming began, the stream always ends with exactly one end or
// error frame.
type QueryHandler struct {
	resolver     turn.Resolver
	store        task.Store
	quotas       QuotaReporter
	systemPrompt string
	keepalive    time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

var _ http.Handler = (*QueryHandler)(nil)

// NewQueryHandler returns a QueryHandler.
func NewQueryHandler(cfg QueryHandlerConfig) (*QueryHandler, error) {
	if cfg.Resolver == nil {
		return nil, errors.New("session resolver cannot be nil")
	}
	if cfg.Store == nil {
		return nil, errors.New("task store cannot be nil")
	}
	if cfg.Keepalive == 0 {
		cfg.Keepalive = DefaultKeepalive
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &QueryHandler{
		resolver:     cfg.Resolver,
		store:        cfg.Store,
		quotas:       cfg.Quotas,
		systemPrompt: cfg.SystemPrompt,
		keepalive:    cfg.Keepalive,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}, nil
}

// recvResult is one outcome of turn.Stream.Recv.
type recvResult struct {
	ev  turn.Event
	err error
}

// ServeHTTP implements [http.Handler].
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req QueryRequest
	if err := json.UnmarshalRead(http.MaxBytesReader(w, r.Body, maxRequestBytes), &req); err != nil {
		writeHTTPError(w, a2a.NewInputError("body", "%v", err))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeHTTPError(w, a2a.NewInputError("query", "query cannot be empty"))
		return
	}
	switch req.MediaType {
	case "":
		req.MediaType = sse.MediaTypeJSON
	case sse.MediaTypeJSON, sse.MediaTypeText:
	default:
		writeHTTPError(w, a2a.NewInputError("media_type", "unsupported media type %q", req.MediaType))
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}
	if req.SystemPrompt == "" {
		req.SystemPrompt = h.systemPrompt
	}

	user := auth.UserFromContext(ctx)
	logger := h.logger.With(slog.String("conversation_id", req.ConversationID), slog.String("user_id", user.UserID()))

	sessionID, _, err := h.store.GetContextSession(ctx, req.ConversationID)
	if err != nil {
		logger.ErrorContext(ctx, "conversation state lookup failed", slog.Any("error", err))
		writeHTTPError(w, err)
		return
	}

	provider := req.Provider
	if provider == "" {
		provider = agent_execution.DefaultProvider
	}
	client, model, err := h.resolver.Resolve(ctx, turn.Hint{Model: req.Model, Provider: req.Provider}, user.Token())
	if err != nil {
		h.metrics.LLMFailure(provider, req.Model)
		logger.WarnContext(ctx, "resolving backend", slog.Any("error", err))
		writeHTTPError(w, err)
		return
	}

	h.metrics.LLMCall(provider, model)
	stream, err := client.Turn(ctx, turn.Request{
		Query:        req.Query,
		SessionID:    sessionID,
		SystemPrompt: req.SystemPrompt,
	})
	if err != nil {
		h.metrics.LLMFailure(provider, model)
		logger.WarnContext(ctx, "starting turn", slog.Any("error", err))
		writeHTTPError(w, err)
		return
	}
	defer stream.Close()
	if sid := stream.SessionID(); sid != "" {
		sessionID = sid
	}

	run := &queryRun{
		QueryHandler: h,
		req:          &req,
		user:         user,
		logger:       logger,
		out:          newStreamWriter(w),
		docs:         sse.NewDocumentMap(),
		provider:     provider,
		model:        model,
		sessionID:    sessionID,
	}
	run.serve(ctx, stream)
}

// queryRun is the state of one streaming query.
type queryRun struct {
	*QueryHandler

	req    *QueryRequest
	user   auth.User
	logger *slog.Logger
	out    *streamWriter
	seq    sse.Sequence
	docs   *sse.DocumentMap

	provider  string
	model     string
	sessionID string
	text      strings.Builder
}

func (q *queryRun) structured() bool {
	return q.req.MediaType == sse.MediaTypeJSON
}

// emit writes a structured frame; it is a no-op for plain text streams.
func (q *queryRun) emit(frames ...string) error {
	if !q.structured() {
		return nil
	}
	for _, f := range frames {
		if err := q.out.write(f); err != nil {
			return err
		}
	}
	return nil
}

func (q *queryRun) serve(ctx context.Context, stream turn.Stream) {
	rctx, cancel := context.WithCancel(ctx)
	results := make(chan recvResult)
	recvDone := make(chan struct{})
	go func() {
		defer close(recvDone)
		for {
			ev, err := stream.Recv(rctx)
			select {
			case results <- recvResult{ev: ev, err: err}:
			case <-rctx.Done():
				return
			}
			if err != nil || turn.IsTerminal(ev) {
				return
			}
		}
	}()
	// The caller closes stream once serve returns, so no Recv may still run.
	defer func() {
		cancel()
		<-recvDone
	}()

	var tick <-chan time.Time
	if q.keepalive > 0 {
		ticker := time.NewTicker(q.keepalive)
		defer ticker.Stop()
		tick = ticker.C
	}

	if q.structured() {
		if err := q.out.write(sse.Start(q.req.ConversationID)); err != nil {
			return
		}
	} else {
		q.out.start()
	}

	for {
		select {
		case <-ctx.Done():
			q.logger.DebugContext(ctx, "streaming query canceled by client")
			return

		case <-tick:
			if err := q.emit(sse.Heartbeat(&q.seq)); err != nil {
				return
			}

		case res := <-results:
			done, err := q.handle(ctx, res)
			if err != nil {
				q.logger.DebugContext(ctx, "streaming query client gone", slog.Any("error", err))
				return
			}
			if done {
				return
			}
		}
	}
}

// handle renders one stream outcome and reports whether the stream ended.
func (q *queryRun) handle(ctx context.Context, res recvResult) (bool, error) {
	if errors.Is(res.err, io.EOF) {
		q.logger.WarnContext(ctx, "turn stream ended without a terminal event")
		return true, q.end(ctx, turn.TurnComplete{})
	}
	if res.err != nil {
		return true, q.fail(ctx, res.err)
	}

	switch ev := res.ev.(type) {
	case turn.TurnStarted:
		return false, q.emit(sse.Heartbeat(&q.seq))

	case turn.TextDelta:
		q.text.WriteString(ev.Text)
		if q.structured() {
			return false, q.out.write(sse.Token(&q.seq, ev.Text))
		}
		return false, q.out.write(ev.Text)

	case turn.ShieldResult:
		return false, q.emit(sse.ShieldResult(&q.seq, ev.Violation, q.metrics))

	case turn.ToolStepStarted:
		return false, q.emit(sse.ToolCallStarted(&q.seq))

	case turn.ToolExecution:
		return false, q.emit(sse.ToolExecution(&q.seq, ev, q.docs)...)

	case turn.AwaitingInput:
		return true, q.end(ctx, turn.TurnComplete{Text: ev.Text})

	case turn.TurnComplete:
		return true, q.end(ctx, ev)

	case turn.ErrorEvent:
		return true, q.fail(ctx, ev.Err)

	default:
		return false, nil
	}
}

// end renders the part of the output not yet streamed and the end frame, then
// records the session of the conversation.
func (q *queryRun) end(ctx context.Context, done turn.TurnComplete) error {
	if rest := strings.TrimPrefix(done.Text, q.text.String()); rest != "" {
		if q.structured() {
			if err := q.out.write(sse.TurnComplete(&q.seq, rest)); err != nil {
				return err
			}
		} else if err := q.out.write(rest); err != nil {
			return err
		}
	}
	if done.SessionID != "" {
		q.sessionID = done.SessionID
	}

	var quotas map[string]int64
	if q.quotas != nil {
		var err error
		if quotas, err = q.quotas.AvailableQuotas(ctx, q.user); err != nil {
			q.logger.WarnContext(ctx, "reading available quotas", slog.Any("error", err))
		}
	}

	err := q.out.write(sse.End(q.docs, done.Usage, quotas, done.Documents, q.req.MediaType))

	if q.sessionID != "" {
		if perr := q.store.PutContextSession(context.WithoutCancel(ctx), q.req.ConversationID, q.sessionID); perr != nil {
			q.logger.ErrorContext(ctx, "persisting conversation session", slog.Any("error", perr))
		}
	}
	return err
}

func (q *queryRun) fail(ctx context.Context, err error) error {
	q.metrics.LLMFailure(q.provider, q.model)
	q.logger.ErrorContext(ctx, "streaming query failed", slog.Any("error", err))
	return q.out.write(sse.Error(err, q.req.MediaType))
}
