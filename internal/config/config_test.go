// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/go-a2a/a2a-gateway/server/task"
)

func envOf(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const sampleYAML = `
server:
  addr: ":9090"
  receive_timeout: 30s
  keepalive: -1s
  queue_size: 8
log:
  level: debug
  format: text
store:
  type: redis
  redis_addr: "redis:6379"
  ttl: 24h
backend:
  base_url: "http://llm:8000/v1"
  model: granite
  models: [granite, llama]
agent_card:
  name: assistant
  url: "https://gateway.example.com/a2a"
  capabilities:
    streaming: true
  skills:
    - id: qa
      name: Question answering
`

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeFile(t, sampleYAML)
	cfg, err := load(path, envOf(map[string]string{
		"A2A_GATEWAY_MODEL":     "llama",
		"A2A_GATEWAY_KEEPALIVE": "5s",
		"OPENAI_API_KEY":        "sk-env",
	}))
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	wantServer := ServerConfig{
		Addr:              ":9090",
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		StartupTimeout:    30 * time.Second,
		ReceiveTimeout:    30 * time.Second,
		Keepalive:         5 * time.Second,
		QueueSize:         8,
	}
	if diff := cmp.Diff(wantServer, cfg.Server); diff != "" {
		t.Errorf("server mismatch (-want +got):\n%s", diff)
	}
	wantStore := task.Config{Type: task.TypeRedis, RedisAddr: "redis:6379", TTL: 24 * time.Hour}
	if diff := cmp.Diff(wantStore, cfg.Store); diff != "" {
		t.Errorf("store mismatch (-want +got):\n%s", diff)
	}
	wantBackend := BackendConfig{
		BaseURL:    "http://llm:8000/v1",
		APIKey:     "sk-env",
		Model:      "llama",
		Models:     []string{"granite", "llama"},
		MaxRetries: 2,
	}
	if diff := cmp.Diff(wantBackend, cfg.Backend); diff != "" {
		t.Errorf("backend mismatch (-want +got):\n%s", diff)
	}
	if cfg.AgentCard.Name != "assistant" || len(cfg.AgentCard.Skills) != 1 {
		t.Errorf("agent card = %+v", cfg.AgentCard)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		yaml    string
		env     map[string]string
		wantErr string
	}{
		"error: missing model": {
			wantErr: "backend.model is required",
		},
		"error: unknown field": {
			yaml:    "server:\n  port: 1\n",
			env:     map[string]string{"A2A_GATEWAY_MODEL": "m"},
			wantErr: "field port not found",
		},
		"error: bad duration override": {
			env:     map[string]string{"A2A_GATEWAY_MODEL": "m", "A2A_GATEWAY_RECEIVE_TIMEOUT": "soon"},
			wantErr: "A2A_GATEWAY_RECEIVE_TIMEOUT",
		},
		"error: bad store type": {
			env:     map[string]string{"A2A_GATEWAY_MODEL": "m", "A2A_GATEWAY_STORE_TYPE": "etcd"},
			wantErr: `store.type "etcd"`,
		},
		"error: bad log level": {
			env:     map[string]string{"A2A_GATEWAY_MODEL": "m", "A2A_GATEWAY_LOG_LEVEL": "loud"},
			wantErr: "log.level",
		},
		"error: bad forward auth": {
			env:     map[string]string{"A2A_GATEWAY_MODEL": "m", "A2A_GATEWAY_FORWARD_AUTH": "maybe"},
			wantErr: "FORWARD_AUTH",
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := ""
			if tt.yaml != "" {
				path = writeFile(t, tt.yaml)
			}
			_, err := load(path, envOf(tt.env))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("load() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnv_Lists(t *testing.T) {
	t.Parallel()

	cfg := Default()
	err := cfg.applyEnv(envOf(map[string]string{
		"A2A_GATEWAY_MODELS":       " a, b ,,c ",
		"A2A_GATEWAY_FORWARD_AUTH": "true",
		"A2A_GATEWAY_REDIS_DB":     "3",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, cfg.Backend.Models); diff != "" {
		t.Errorf("models mismatch (-want +got):\n%s", diff)
	}
	if !cfg.Backend.ForwardAuth || cfg.Store.RedisDB != 3 {
		t.Errorf("backend = %+v, store = %+v", cfg.Backend, cfg.Store)
	}
}

func TestLogConfig_NewLogger(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cfg       LogConfig
		wantLine  string
		wantDebug bool
	}{
		"success: json info":  {cfg: LogConfig{Level: "info", Format: "json"}, wantLine: `"msg":"hello"`},
		"success: text debug": {cfg: LogConfig{Level: "debug", Format: "text"}, wantLine: "msg=hello", wantDebug: true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := tt.cfg.NewLogger(&buf)
			logger.Debug("debug-line")
			logger.Info("hello")

			if !strings.Contains(buf.String(), tt.wantLine) {
				t.Errorf("output = %q, want %q", buf.String(), tt.wantLine)
			}
			if got := strings.Contains(buf.String(), "debug-line"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}
		})
	}
}
