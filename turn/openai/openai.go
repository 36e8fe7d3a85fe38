// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package openai runs turns against an OpenAI compatible chat completions API.
//
// The backend keeps the message history of every session in memory, so a
// session id returned by one turn continues the conversation in the next.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	a2a "github.com/go-a2a/a2a-gateway"
	"github.com/go-a2a/a2a-gateway/turn"
)

// ProviderName is the provider id this backend answers to.
const ProviderName = "openai"

// DefaultMaxHistory bounds the messages kept per session.
const DefaultMaxHistory = 40

// Config configures a Backend.
type Config struct {
	APIKey string
	// BaseURL points the client at a compatible server. Empty uses the SDK default.
	BaseURL string
	// Model is used when the turn does not ask for one.
	Model string
	// Models restricts the models a caller may select. Empty allows any.
	Models []string
	// ForwardAuth sends the caller's bearer token as the API key when APIKey is empty.
	ForwardAuth bool
	MaxHistory  int
	MaxRetries  int
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Backend resolves models and runs turns on them.
type Backend struct {
	client      openai.Client
	model       string
	models      []string
	forwardAuth bool
	history     *history
	logger      *slog.Logger
}

var _ turn.Resolver = (*Backend)(nil)

// New returns a Backend for cfg.
func New(cfg Config) (*Backend, error) {
	if cfg.Model == "" {
		return nil, errors.New("openai backend requires a default model")
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	opts := []option.RequestOption{option.WithMaxRetries(cfg.MaxRetries)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Backend{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		models:      cfg.Models,
		forwardAuth: cfg.ForwardAuth && cfg.APIKey == "",
		history:     newHistory(cfg.MaxHistory),
		logger:      cfg.Logger,
	}, nil
}

// Resolve implements [turn.Resolver].
func (b *Backend) Resolve(ctx context.Context, hint turn.Hint, authToken string) (turn.Client, string, error) {
	if hint.Provider != "" && hint.Provider != ProviderName {
		return nil, "", a2a.NewBackendStatusError(http.StatusNotFound, fmt.Errorf("provider %q not found", hint.Provider))
	}
	model := b.model
	if hint.Model != "" {
		model = hint.Model
	}
	if len(b.models) > 0 && !slices.Contains(b.models, model) {
		return nil, "", a2a.NewBackendStatusError(http.StatusNotFound, fmt.Errorf("model %q not found", model))
	}

	c := &client{backend: b, model: model}
	if b.forwardAuth && authToken != "" {
		c.opts = append(c.opts, option.WithAPIKey(authToken))
	}
	return c, model, nil
}

// Forget drops the history of session.
func (b *Backend) Forget(session string) {
	b.history.forget(session)
}

type client struct {
	backend *Backend
	model   string
	opts    []option.RequestOption
}

var _ turn.Client = (*client)(nil)

// Turn implements [turn.Client]. Failures to reach the API are returned here,
// before any event is produced.
func (c *client) Turn(ctx context.Context, req turn.Request) (turn.Stream, error) {
	session := req.SessionID
	if session == "" {
		session = uuid.NewString()
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, c.backend.history.get(session)...)
	messages = append(messages, openai.UserMessage(req.Query))

	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	// The response body outlives this call; sctx lets Close and a canceled
	// Recv abort a read blocked on it.
	sctx, cancel := context.WithCancel(ctx)
	upstream := c.backend.client.Chat.Completions.NewStreaming(sctx, params, c.opts...)
	if err := upstream.Err(); err != nil {
		upstream.Close()
		cancel()
		return nil, mapError(c.model, err)
	}

	c.backend.logger.DebugContext(ctx, "openai turn started",
		slog.String("session_id", session),
		slog.String("model", c.model),
	)
	return &stream{
		upstream: upstream,
		cancel:   cancel,
		session:  session,
		model:    c.model,
		query:    req.Query,
		history:  c.backend.history,
		pending:  []turn.Event{turn.TurnStarted{}},
	}, nil
}

type stream struct {
	upstream *ssestream.Stream[openai.ChatCompletionChunk]
	cancel   context.CancelFunc
	acc      openai.ChatCompletionAccumulator
	session  string
	model    string
	query    string
	history  *history

	pending []turn.Event
	done    bool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ turn.Stream = (*stream)(nil)

// Recv implements [turn.Stream].
func (s *stream) Recv(ctx context.Context) (turn.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.closed.Load() {
			return nil, io.EOF
		}
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}
		if s.done {
			return nil, io.EOF
		}
		stop := context.AfterFunc(ctx, s.cancel)
		s.advance()
		stop()
	}
}

// advance reads one chunk and queues the events it produces.
func (s *stream) advance() {
	if !s.upstream.Next() {
		s.done = true
		if s.closed.Load() {
			return
		}
		if err := s.upstream.Err(); err != nil {
			s.pending = append(s.pending, turn.ErrorEvent{Err: mapError(s.model, err)})
			return
		}
		s.pending = append(s.pending, s.complete())
		return
	}

	chunk := s.upstream.Current()
	s.acc.AddChunk(chunk)
	if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
		s.pending = append(s.pending, turn.TextDelta{Text: chunk.Choices[0].Delta.Content})
	}
	if refusal, ok := s.acc.JustFinishedRefusal(); ok {
		s.pending = append(s.pending, turn.ShieldResult{Violation: &turn.Violation{
			UserMessage: refusal,
			Metadata:    map[string]any{"violation_type": "refusal"},
		}})
	}
	if call, ok := s.acc.JustFinishedToolCall(); ok {
		s.pending = append(s.pending,
			turn.ToolStepStarted{},
			turn.ToolExecution{Calls: []turn.ToolCall{{
				CallID:    call.ID,
				ToolName:  call.Name,
				Arguments: call.Arguments,
			}}},
		)
	}
}

func (s *stream) complete() turn.Event {
	var text string
	if len(s.acc.Choices) > 0 {
		text = s.acc.Choices[0].Message.Content
	}
	s.history.add(s.session,
		openai.UserMessage(s.query),
		openai.AssistantMessage(text),
	)
	return turn.TurnComplete{
		Text:      text,
		SessionID: s.session,
		MessageID: s.acc.ID,
		Usage: turn.Usage{
			InputTokens:  int(s.acc.Usage.PromptTokens),
			OutputTokens: int(s.acc.Usage.CompletionTokens),
		},
	}
}

// SessionID implements [turn.Stream].
func (s *stream) SessionID() string {
	return s.session
}

// Close implements [turn.Stream].
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		s.closeErr = s.upstream.Close()
	})
	return s.closeErr
}

// mapError places SDK and transport errors in the gateway failure taxonomy.
func mapError(model string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return a2a.NewRateLimitError(model, err)
		}
		return a2a.NewBackendStatusError(apiErr.StatusCode, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return a2a.NewBackendUnavailableError(err)
	}
	return err
}

// history is the per-session message log.
type history struct {
	mu       sync.Mutex
	limit    int
	sessions map[string][]openai.ChatCompletionMessageParamUnion
}

func newHistory(limit int) *history {
	return &history{
		limit:    limit,
		sessions: make(map[string][]openai.ChatCompletionMessageParamUnion),
	}
}

func (h *history) get(session string) []openai.ChatCompletionMessageParamUnion {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.sessions[session])
}

func (h *history) add(session string, msgs ...openai.ChatCompletionMessageParamUnion) {
	h.mu.Lock()
	defer h.mu.Unlock()
	log := append(h.sessions[session], msgs...)
	if len(log) > h.limit {
		log = slices.Clone(log[len(log)-h.limit:])
	}
	h.sessions[session] = log
}

func (h *history) forget(session string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, session)
}

func (h *history) size(session string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[session])
}
