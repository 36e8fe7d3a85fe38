// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"strings"
	"testing"
)

func TestPathsAreDistinct(t *testing.T) {
	t.Parallel()

	paths := []string{
		AgentCardWellKnownPath,
		LegacyAgentCardPath,
		DefaultRPCURL,
		StreamingQueryPath,
		HealthPath,
		ReadyPath,
		MetricsPath,
	}
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		if !strings.HasPrefix(p, "/") {
			t.Errorf("path %q is not absolute", p)
		}
		if seen[p] {
			t.Errorf("path %q is registered twice", p)
		}
		seen[p] = true
	}
}
