// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

// HTTP paths served by the gateway.
const (
	// AgentCardWellKnownPath serves the public agent card.
	AgentCardWellKnownPath = "/.well-known/agent-card.json"

	// LegacyAgentCardPath is the agent card path of protocol versions before 0.3.
	LegacyAgentCardPath = "/.well-known/agent.json"

	// DefaultRPCURL is the JSON-RPC endpoint of the push protocol.
	DefaultRPCURL = "/a2a"

	// StreamingQueryPath is the SSE query endpoint.
	StreamingQueryPath = "/v1/streaming_query"

	HealthPath  = "/healthz"
	ReadyPath   = "/readyz"
	MetricsPath = "/metrics"
)
