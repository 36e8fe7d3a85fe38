// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"testing"
)

func TestAgentCard_Validate(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		card    AgentCard
		wantErr bool
	}{
		"success: minimal": {card: AgentCard{Name: "gateway", URL: "http://localhost/a2a"}},
		"success: skills": {card: AgentCard{Name: "gateway", URL: "http://localhost/a2a", Skills: []AgentSkill{
			{ID: "qa", Name: "Question answering"},
		}}},
		"error: no name":       {card: AgentCard{URL: "http://localhost/a2a"}, wantErr: true},
		"error: no url":        {card: AgentCard{Name: "gateway"}, wantErr: true},
		"error: unnamed skill": {card: AgentCard{Name: "gateway", URL: "http://localhost/a2a", Skills: []AgentSkill{{ID: "qa"}}}, wantErr: true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if err := tt.card.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
