// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	a2a "github.com/go-a2a/a2a-gateway"
	"github.com/go-a2a/a2a-gateway/internal/metrics"
	"github.com/go-a2a/a2a-gateway/server/task"
	"github.com/go-a2a/a2a-gateway/turn"
	"github.com/go-a2a/a2a-gateway/turn/turntest"
)

// downStore is a store that reports itself unreachable.
type downStore struct {
	*task.InMemoryStore
}

func (downStore) Ready(context.Context) bool { return false }

func newTestServer(t *testing.T, store task.Store) *httptest.Server {
	t.Helper()

	stream := turntest.NewStream("sess-1", turntest.Script(turn.TurnComplete{Text: "pong"})...)
	s, err := New(Config{
		AgentCard: &a2a.AgentCard{
			Name:         "gateway",
			URL:          "http://localhost/a2a",
			Capabilities: a2a.AgentCapabilities{Streaming: true},
		},
		Store:     store,
		Resolver:  turntest.Resolver(turntest.NewClient(stream), "m1"),
		Keepalive: -1,
	}, WithMetrics(metrics.New()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (int, string, http.Header) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body), resp.Header
}

func TestNew(t *testing.T) {
	t.Parallel()

	store := task.NewInMemoryStore()
	resolver := turntest.Resolver(turntest.NewClient(), "m1")
	card := &a2a.AgentCard{Name: "gateway", URL: "http://localhost"}

	tests := map[string]Config{
		"error: missing agent card": {Store: store, Resolver: resolver},
		"error: invalid agent card": {AgentCard: &a2a.AgentCard{Name: "gateway"}, Store: store, Resolver: resolver},
		"error: missing store":      {AgentCard: card, Resolver: resolver},
		"error: missing resolver":   {AgentCard: card, Store: store},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(cfg); err == nil {
				t.Error("New() error = nil")
			}
		})
	}
}

func TestServer_Endpoints(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, task.NewInMemoryStore())

	tests := map[string]struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		"success: healthz":      {path: a2a.HealthPath, wantStatus: http.StatusOK, wantBody: "ok"},
		"success: readyz":       {path: a2a.ReadyPath, wantStatus: http.StatusOK, wantBody: "ok"},
		"success: agent card":   {path: a2a.AgentCardWellKnownPath, wantStatus: http.StatusOK, wantBody: `"protocolVersion":"` + a2a.Version + `"`},
		"success: legacy card":  {path: a2a.LegacyAgentCardPath, wantStatus: http.StatusOK, wantBody: `"name":"gateway"`},
		"error: unknown route":  {path: "/nope", wantStatus: http.StatusNotFound},
		"error: rpc needs post": {path: a2a.DefaultRPCURL, wantStatus: http.StatusMethodNotAllowed},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			status, body, header := get(t, srv.URL+tt.path)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if !strings.Contains(body, tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", body, tt.wantBody)
			}
			if header.Get(HeaderRequestID) == "" {
				t.Error("response has no request id")
			}
		})
	}
}

func TestServer_MetricsAfterQuery(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, task.NewInMemoryStore())

	resp, err := http.Post(srv.URL+a2a.StreamingQueryPath, "application/json", strings.NewReader(`{"query":"ping"}`))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `"event":"end"`) {
		t.Fatalf("query body = %q, want an end frame", body)
	}

	_, metricsBody, _ := get(t, srv.URL+a2a.MetricsPath)
	for _, want := range []string{
		`a2a_gateway_llm_calls_total{model="m1",provider="default"} 1`,
		`a2a_gateway_http_requests_total{method="POST",route="/v1/streaming_query",status="200"} 1`,
	} {
		if !strings.Contains(metricsBody, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestServer_ReadyzReflectsStore(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, downStore{task.NewInMemoryStore()})
	if status, _, _ := get(t, srv.URL+a2a.ReadyPath); status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", status)
	}
}
