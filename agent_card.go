// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import "fmt"

// AgentCapabilities defines optional capabilities supported by the agent.
type AgentCapabilities struct {
	// Streaming is true if the agent supports message/stream.
	Streaming bool `json:"streaming,omitzero" yaml:"streaming"`

	// PushNotifications is true if the agent can notify updates to a client webhook.
	PushNotifications bool `json:"pushNotifications,omitzero" yaml:"push_notifications"`

	// StateTransitionHistory is true if the agent exposes the status history of tasks.
	StateTransitionHistory bool `json:"stateTransitionHistory,omitzero" yaml:"state_transition_history"`
}

// AgentProvider represents the service provider of an agent.
type AgentProvider struct {
	Organization string `json:"organization" yaml:"organization"`
	URL          string `json:"url" yaml:"url"`
}

// AgentSkill represents a unit of capability that an agent can perform.
type AgentSkill struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Tags        []string `json:"tags,omitzero" yaml:"tags"`
	Examples    []string `json:"examples,omitzero" yaml:"examples"`
	InputModes  []string `json:"inputModes,omitzero" yaml:"input_modes"`
	OutputModes []string `json:"outputModes,omitzero" yaml:"output_modes"`
}

// AgentCard conveys the identity, endpoint and skills of the agent served by
// the gateway.
type AgentCard struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`

	// URL is the address the agent is hosted at.
	URL string `json:"url" yaml:"url"`

	// Version of the agent; the format is up to the provider.
	Version string `json:"version" yaml:"version"`

	// ProtocolVersion is the A2A protocol version spoken by the agent.
	ProtocolVersion string `json:"protocolVersion" yaml:"-"`

	DocumentationURL   string            `json:"documentationUrl,omitzero" yaml:"documentation_url"`
	Provider           *AgentProvider    `json:"provider,omitzero" yaml:"provider"`
	Capabilities       AgentCapabilities `json:"capabilities" yaml:"capabilities"`
	DefaultInputModes  []string          `json:"defaultInputModes" yaml:"default_input_modes"`
	DefaultOutputModes []string          `json:"defaultOutputModes" yaml:"default_output_modes"`
	Skills             []AgentSkill      `json:"skills" yaml:"skills"`
}

// Validate ensures the agent card is complete enough to be served.
func (c *AgentCard) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("agent card name cannot be empty")
	}
	if c.URL == "" {
		return fmt.Errorf("agent card URL cannot be empty")
	}
	for i, s := range c.Skills {
		if s.ID == "" || s.Name == "" {
			return fmt.Errorf("agent card skill %d needs an ID and a name", i)
		}
	}
	return nil
}
