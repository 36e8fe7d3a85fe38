// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the gateway configuration.
//
// Values come from three layers, later ones winning: built-in defaults, an
// optional YAML file, and A2A_GATEWAY_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	a2a "github.com/go-a2a/a2a-gateway"
	"github.com/go-a2a/a2a-gateway/server/task"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "A2A_GATEWAY_"

// Config is the complete gateway configuration.
type Config struct {
	Server    ServerConfig  `yaml:"server"`
	Log       LogConfig     `yaml:"log"`
	Store     task.Config   `yaml:"store"`
	Backend   BackendConfig `yaml:"backend"`
	AgentCard a2a.AgentCard `yaml:"agent_card"`
}

// ServerConfig configures the HTTP listener and the bridges behind it.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`

	// StartupTimeout bounds the wait for the conversation store to become ready.
	StartupTimeout time.Duration `yaml:"startup_timeout"`

	// ReceiveTimeout bounds the wait for the next push-protocol event.
	ReceiveTimeout time.Duration `yaml:"receive_timeout"`

	// Keepalive is the SSE heartbeat interval. Negative disables heartbeats.
	Keepalive time.Duration `yaml:"keepalive"`

	QueueSize    int    `yaml:"queue_size"`
	SystemPrompt string `yaml:"system_prompt"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is json or text.
	Format string `yaml:"format"`
}

// BackendConfig configures the OpenAI compatible inference backend.
type BackendConfig struct {
	BaseURL     string   `yaml:"base_url"`
	APIKey      string   `yaml:"api_key"`
	Model       string   `yaml:"model"`
	Models      []string `yaml:"models"`
	ForwardAuth bool     `yaml:"forward_auth"`
	MaxHistory  int      `yaml:"max_history"`
	MaxRetries  int      `yaml:"max_retries"`
}

// Default returns the configuration used before any file or override applies.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			StartupTimeout:    30 * time.Second,
			ReceiveTimeout:    5 * time.Minute,
			Keepalive:         15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: task.Config{
			Type: task.TypeMemory,
		},
		Backend: BackendConfig{
			MaxRetries: 2,
		},
		AgentCard: a2a.AgentCard{
			Name:               "a2a-gateway",
			Description:        "Conversational assistant reachable over the agent-to-agent protocol.",
			URL:                "http://localhost:8080" + a2a.DefaultRPCURL,
			Version:            "0.1.0",
			Capabilities:       a2a.AgentCapabilities{Streaming: true},
			DefaultInputModes:  []string{"text/plain"},
			DefaultOutputModes: []string{"text/plain"},
		},
	}
}

// Load reads path (which may be empty) and applies environment overrides.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overlays A2A_GATEWAY_* variables. The backend API key also falls
// back to OPENAI_API_KEY.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"ADDR":            &c.Server.Addr,
		"SYSTEM_PROMPT":   &c.Server.SystemPrompt,
		"LOG_LEVEL":       &c.Log.Level,
		"LOG_FORMAT":      &c.Log.Format,
		"STORE_TYPE":      &c.Store.Type,
		"STORE_PATH":      &c.Store.Path,
		"STORE_DSN":       &c.Store.DSN,
		"REDIS_ADDR":      &c.Store.RedisAddr,
		"REDIS_PASSWORD":  &c.Store.RedisPassword,
		"BACKEND_URL":     &c.Backend.BaseURL,
		"BACKEND_API_KEY": &c.Backend.APIKey,
		"MODEL":           &c.Backend.Model,
		"AGENT_URL":       &c.AgentCard.URL,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	if c.Backend.APIKey == "" {
		if v, ok := lookup("OPENAI_API_KEY"); ok {
			c.Backend.APIKey = v
		}
	}

	durations := map[string]*time.Duration{
		"RECEIVE_TIMEOUT":  &c.Server.ReceiveTimeout,
		"KEEPALIVE":        &c.Server.Keepalive,
		"SHUTDOWN_TIMEOUT": &c.Server.ShutdownTimeout,
		"STARTUP_TIMEOUT":  &c.Server.StartupTimeout,
		"STORE_TTL":        &c.Store.TTL,
	}
	for key, dst := range durations {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"QUEUE_SIZE": &c.Server.QueueSize,
		"REDIS_DB":   &c.Store.RedisDB,
	}
	for key, dst := range ints {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}

	if v, ok := lookup(EnvPrefix + "MODELS"); ok {
		c.Backend.Models = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "FORWARD_AUTH"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sFORWARD_AUTH: %w", EnvPrefix, err)
		}
		c.Backend.ForwardAuth = b
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for item := range strings.SplitSeq(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.QueueSize < 0 {
		return errors.New("server.queue_size must not be negative")
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q must be json or text", c.Log.Format)
	}
	switch c.Store.Type {
	case "", task.TypeMemory, task.TypeSQLite, task.TypePostgres, task.TypeRedis:
	default:
		return fmt.Errorf("store.type %q is not supported", c.Store.Type)
	}
	if c.Backend.Model == "" {
		return errors.New("backend.model is required")
	}
	return c.AgentCard.Validate()
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return level, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// NewLogger builds the process logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := l.level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
