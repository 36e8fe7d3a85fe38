// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package server assembles the HTTP surface of the gateway.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	a2a "github.com/go-a2a/a2a-gateway"
	"github.com/go-a2a/a2a-gateway/auth"
	"github.com/go-a2a/a2a-gateway/internal/metrics"
	"github.com/go-a2a/a2a-gateway/server/agent_execution"
	"github.com/go-a2a/a2a-gateway/server/handler"
	"github.com/go-a2a/a2a-gateway/server/task"
	"github.com/go-a2a/a2a-gateway/turn"
)

// Config holds the collaborators and tunables of the gateway server.
type Config struct {
	// AgentCard is served on the well-known paths.
	AgentCard *a2a.AgentCard
	Store     task.Store
	Resolver  turn.Resolver
	// Quotas is optional.
	Quotas handler.QuotaReporter

	SystemPrompt   string
	QueueSize      int
	ReceiveTimeout time.Duration
	Keepalive      time.Duration
}

// Server serves the push protocol, the streaming query endpoint and the
// operational endpoints.
type Server struct {
	router  chi.Router
	store   task.Store
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics.Metrics
}

var _ http.Handler = (*Server)(nil)

// New returns a Server wired from cfg.
func New(cfg Config, opts ...Option) (*Server, error) {
	if cfg.AgentCard == nil {
		return nil, errors.New("agent card is required")
	}
	if err := cfg.AgentCard.Validate(); err != nil {
		return nil, err
	}
	if cfg.Store == nil {
		return nil, errors.New("task store is required")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("session resolver is required")
	}

	s := &Server{
		store:  cfg.Store,
		logger: slog.Default(),
		tracer: otel.GetTracerProvider().Tracer("github.com/go-a2a/a2a-gateway/server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	exec, err := agent_execution.NewTurnExecutor(agent_execution.TurnExecutorConfig{
		Store:        cfg.Store,
		Resolver:     cfg.Resolver,
		SystemPrompt: cfg.SystemPrompt,
		Logger:       s.logger,
		Tracer:       s.tracer,
		Metrics:      s.metrics,
	})
	if err != nil {
		return nil, err
	}
	requests, err := handler.NewDefaultRequestHandler(handler.DefaultRequestHandlerConfig{
		Builder:        agent_execution.NewStoreContextBuilder(cfg.Store, s.logger),
		Executor:       exec,
		Store:          cfg.Store,
		QueueSize:      cfg.QueueSize,
		ReceiveTimeout: cfg.ReceiveTimeout,
		Logger:         s.logger,
	})
	if err != nil {
		return nil, err
	}
	queries, err := handler.NewQueryHandler(handler.QueryHandlerConfig{
		Resolver:     cfg.Resolver,
		Store:        cfg.Store,
		Quotas:       cfg.Quotas,
		SystemPrompt: cfg.SystemPrompt,
		Keepalive:    cfg.Keepalive,
		Metrics:      s.metrics,
		Logger:       s.logger,
	})
	if err != nil {
		return nil, err
	}

	card := *cfg.AgentCard
	card.ProtocolVersion = a2a.Version
	cardHandler := handler.AgentCardHandler(&card)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(correlation(s.logger, s.metrics))

	r.Get(a2a.HealthPath, s.healthz)
	r.Get(a2a.ReadyPath, s.readyz)
	r.Method(http.MethodGet, a2a.MetricsPath, s.metrics.Handler())
	r.Method(http.MethodGet, a2a.AgentCardWellKnownPath, cardHandler)
	r.Method(http.MethodGet, a2a.LegacyAgentCardPath, cardHandler)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Method(http.MethodPost, a2a.DefaultRPCURL, handler.NewJSONRPCHandler(requests,
			handler.WithAgentCard(&card),
			handler.WithLogger(s.logger),
		))
		r.Method(http.MethodPost, a2a.StreamingQueryPath, queries)
	})

	s.router = r
	return s, nil
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// healthz reports liveness.
func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

// readyz reports whether the conversation state store is reachable.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if !s.store.Ready(r.Context()) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("storage unavailable"))
		return
	}
	_, _ = w.Write([]byte("ok"))
}
