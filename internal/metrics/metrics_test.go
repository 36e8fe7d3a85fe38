// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	t.Parallel()

	m := New()
	m.LLMCall("openai", "gpt-4o-mini")
	m.LLMCall("openai", "gpt-4o-mini")
	m.LLMFailure("openai", "gpt-4o-mini")
	m.ValidationError()

	if got := testutil.ToFloat64(m.llmCalls.WithLabelValues("openai", "gpt-4o-mini")); got != 2 {
		t.Errorf("llm_calls_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.llmFailures.WithLabelValues("openai", "gpt-4o-mini")); got != 1 {
		t.Errorf("llm_calls_failures_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.validationErrors); got != 1 {
		t.Errorf("llm_validation_errors_total = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "a2a_gateway_llm_calls_total") {
		t.Errorf("exposition lacks a2a_gateway_llm_calls_total:\n%s", body)
	}
}

func TestMetrics_Nil(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.LLMCall("p", "m")
	m.LLMFailure("p", "m")
	m.ValidationError()
	m.ObserveHTTP("GET", "/", "200", 0.1)
}
