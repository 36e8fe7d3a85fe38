// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent_execution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	a2a "github.com/go-a2a/a2a-gateway"
	"github.com/go-a2a/a2a-gateway/internal/metrics"
	"github.com/go-a2a/a2a-gateway/server/event"
	"github.com/go-a2a/a2a-gateway/server/task"
	"github.com/go-a2a/a2a-gateway/turn"
)

// Metadata keys attached to the events of a turn.
const (
	MetadataSessionID = "session_id"
	MetadataMessageID = "message_id"
	MetadataDocuments = "referenced_documents"
)

// DefaultProvider labels metrics of turns that carry no provider hint.
const DefaultProvider = "default"

// artifactName is the name of the response artifact of every turn.
const artifactName = "response"

// TurnExecutorConfig configures a TurnExecutor.
type TurnExecutorConfig struct {
	Store    task.Store
	Resolver turn.Resolver

	// SystemPrompt is sent with every turn when set.
	SystemPrompt string

	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *metrics.Metrics
}

// TurnExecutor runs one push-protocol turn end to end.
type TurnExecutor struct {
	store        task.Store
	resolver     turn.Resolver
	systemPrompt string
	logger       *slog.Logger
	tracer       trace.Tracer
	metrics      *metrics.Metrics
}

// NewTurnExecutor returns a TurnExecutor.
func NewTurnExecutor(cfg TurnExecutorConfig) (*TurnExecutor, error) {
	if cfg.Store == nil {
		return nil, errors.New("task store cannot be nil")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("session resolver cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.GetTracerProvider().Tracer("github.com/go-a2a/a2a-gateway/agent_execution")
	}

	return &TurnExecutor{
		store:        cfg.Store,
		resolver:     cfg.Resolver,
		systemPrompt: cfg.SystemPrompt,
		logger:       cfg.Logger,
		tracer:       cfg.Tracer,
		metrics:      cfg.Metrics,
	}, nil
}

// turnRun is the mutable state of one Execute call.
type turnRun struct {
	*TurnExecutor

	rc      *RequestContext
	updater task.TaskUpdater
	logger  *slog.Logger
	span    trace.Span

	provider   string
	model      string
	sessionID  string
	artifactID string

	text     strings.Builder
	streamed bool
	// persistSession is set when the turn ended well enough to keep the
	// context mapping.
	persistSession bool
}

// Execute runs the turn described by rc and publishes its events to sink.
//
// Every turn that is not canceled publishes exactly one final status event:
// completed, input-required or failed. Backend failures never surface as a
// returned error, they become the failed status. Execute returns ctx.Err()
// when the turn was canceled, in which case no further event is published,
// and the sink error when the sink rejected an event. A turn canceled with
// [event.ErrDequeueTimeout] as cause is still stored as failed.
func (e *TurnExecutor) Execute(ctx context.Context, rc *RequestContext, sink event.Sink) error {
	ctx, span := e.tracer.Start(ctx, "a2a.agent_execution.Execute",
		trace.WithAttributes(
			attribute.String("a2a.task_id", rc.TaskID),
			attribute.String("a2a.context_id", rc.ContextID),
		))
	defer span.End()

	aggregator := task.NewResultAggregator()
	updater, err := task.NewTaskUpdater(task.TaskUpdaterConfig{
		TaskID:     rc.TaskID,
		ContextID:  rc.ContextID,
		Sink:       sink,
		Aggregator: aggregator,
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	run := &turnRun{
		TurnExecutor: e,
		rc:           rc,
		updater:      updater,
		logger:       e.logger.With(slog.String("task_id", rc.TaskID), slog.String("context_id", rc.ContextID)),
		span:         span,
		provider:     rc.Hint.Provider,
		artifactID:   a2a.NewArtifactID(),
	}
	if run.provider == "" {
		run.provider = DefaultProvider
	}

	err = run.run(ctx)
	switch cause := context.Cause(ctx); {
	case updater.IsTerminal():
		run.persist(context.WithoutCancel(ctx), aggregator.Status())
	case errors.Is(cause, event.ErrDequeueTimeout):
		// The consumer gave up on the turn; keep the outcome it never received.
		run.persist(context.WithoutCancel(ctx), run.abandoned(ctx, cause))
	}

	state := aggregator.State()
	span.SetAttributes(attribute.String("a2a.task_state", string(state)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if state == a2a.TaskStateFailed {
		span.SetStatus(codes.Error, aggregator.Status().MessageText())
	}
	return err
}

func (r *turnRun) run(ctx context.Context) error {
	prior, found, err := r.store.GetContextSession(ctx, r.rc.ContextID)
	if err != nil {
		r.logger.ErrorContext(ctx, "conversation state lookup failed", slog.Any("error", err))
		return r.fail(ctx, err)
	}
	if found {
		r.sessionID = prior
	}

	client, model, err := r.resolver.Resolve(ctx, r.rc.Hint, r.rc.AuthToken)
	if err != nil {
		return r.fail(ctx, err)
	}
	r.model = model
	r.span.SetAttributes(attribute.String("a2a.model", model), attribute.String("a2a.provider", r.provider))

	if err := r.updater.StartWork(ctx, map[string]any{
		MetadataModel:    r.model,
		MetadataProvider: r.provider,
	}); err != nil {
		return r.stop(ctx, err)
	}

	r.metrics.LLMCall(r.provider, r.model)
	stream, err := client.Turn(ctx, turn.Request{
		Query:        r.rc.Query,
		SessionID:    r.sessionID,
		SystemPrompt: r.systemPrompt,
		Metadata:     r.rc.Metadata,
	})
	if err != nil {
		return r.fail(ctx, err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			r.logger.WarnContext(ctx, "closing turn stream", slog.Any("error", cerr))
		}
	}()
	if sid := stream.SessionID(); sid != "" {
		r.sessionID = sid
	}

	return r.drive(ctx, stream)
}

// drive consumes the turn stream until a terminal event was published.
func (r *turnRun) drive(ctx context.Context, stream turn.Stream) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ev, err := stream.Recv(ctx)
		if errors.Is(err, io.EOF) {
			r.logger.WarnContext(ctx, "turn stream ended without a terminal event")
			return r.complete(ctx, "", nil)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return r.fail(ctx, err)
		}

		switch ev := ev.(type) {
		case turn.TextDelta:
			if ev.Text == "" {
				continue
			}
			r.text.WriteString(ev.Text)
			artifact := a2a.NewTextArtifact(r.artifactID, artifactName, ev.Text)
			if err := r.updater.AddArtifact(ctx, artifact, r.streamed, false); err != nil {
				return r.stop(ctx, err)
			}
			r.streamed = true

		case turn.AwaitingInput:
			r.persistSession = true
			msg := a2a.NewAgentTextMessage(r.unstreamed(ev.Text), r.rc.ContextID, r.rc.TaskID)
			return r.stop(ctx, r.updater.RequiresInput(ctx, msg))

		case turn.TurnComplete:
			if ev.SessionID != "" {
				r.sessionID = ev.SessionID
			}
			md := map[string]any{MetadataMessageID: ev.MessageID}
			if len(ev.Documents) > 0 {
				docs := make([]map[string]any, len(ev.Documents))
				for i, d := range ev.Documents {
					docs[i] = map[string]any{"doc_url": d.URL, "doc_title": d.Title}
				}
				md[MetadataDocuments] = docs
			}
			return r.complete(ctx, ev.Text, md)

		case turn.ErrorEvent:
			return r.fail(ctx, ev.Err)

		case turn.ShieldResult:
			if ev.Violation != nil {
				r.metrics.ValidationError()
				r.logger.InfoContext(ctx, "shield violation", slog.String("message", ev.Violation.UserMessage))
			}

		default:
			// Progress markers and unknown kinds carry nothing for the push protocol.
		}
	}
}

// unstreamed returns the part of full not yet delivered as deltas.
func (r *turnRun) unstreamed(full string) string {
	if !r.streamed {
		return full
	}
	return strings.TrimPrefix(full, r.text.String())
}

// complete flushes the final artifact chunk and publishes completed.
// full is the complete output reported by the backend; when empty, the
// accumulated deltas stand in for it.
func (r *turnRun) complete(ctx context.Context, full string, md map[string]any) error {
	if full == "" {
		full = r.text.String()
	}
	artifact := a2a.NewTextArtifact(r.artifactID, artifactName, r.unstreamed(full))
	if md == nil {
		md = make(map[string]any, 1)
	}
	md[MetadataSessionID] = r.sessionID
	artifact.Metadata = md

	if err := r.updater.AddArtifact(ctx, artifact, r.streamed, true); err != nil {
		return r.stop(ctx, err)
	}
	r.persistSession = true
	return r.stop(ctx, r.updater.Complete(ctx, a2a.NewAgentTextMessage(full, r.rc.ContextID, r.rc.TaskID)))
}

// fail publishes the failed status describing err, unless the turn was
// canceled.
func (r *turnRun) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return r.stop(ctx, r.updater.Failed(ctx, r.failure(ctx, err)))
}

// failure classifies err and renders the message of the failed status.
func (r *turnRun) failure(ctx context.Context, err error) *a2a.Message {
	cls := a2a.Classify(err)
	r.metrics.LLMFailure(r.provider, r.model)
	r.logger.ErrorContext(ctx, "turn failed",
		slog.String("category", string(cls.Category)),
		slog.Int("status_code", cls.StatusCode),
		slog.Any("error", err),
	)
	return a2a.NewAgentTextMessage(cls.StatusMessage(), r.rc.ContextID, r.rc.TaskID)
}

// abandoned returns the failed status of a turn canceled because of cause.
// Nothing is published: the consumer is gone.
func (r *turnRun) abandoned(ctx context.Context, cause error) a2a.TaskStatus {
	return a2a.TaskStatus{State: a2a.TaskStateFailed, Message: r.failure(ctx, cause)}
}

// stop ends the turn after a publish attempt. A rejected publish is not
// retried: the turn stops either way.
func (r *turnRun) stop(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	r.logger.WarnContext(ctx, "publishing turn event", slog.Any("error", err))
	return fmt.Errorf("publish event: %w", err)
}

// persist records the outcome of the turn. Failures are logged only: the caller
// already received the terminal status.
func (r *turnRun) persist(ctx context.Context, status a2a.TaskStatus) {
	t := r.rc.Task.Clone()
	if t == nil {
		t = a2a.NewTask(r.rc.TaskID, r.rc.ContextID)
	}
	t.Status = status
	t.Status.Timestamp = time.Now().UTC()
	t.UpdatedAt = t.Status.Timestamp
	if err := r.store.PutTask(ctx, t); err != nil {
		r.logger.ErrorContext(ctx, "persisting task", slog.Any("error", err))
	}

	if !r.persistSession || r.sessionID == "" {
		return
	}
	if err := r.store.PutContextSession(ctx, r.rc.ContextID, r.sessionID); err != nil {
		r.logger.ErrorContext(ctx, "persisting context session",
			slog.String("session_id", r.sessionID), slog.Any("error", err))
	}
}
