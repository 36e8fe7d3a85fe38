// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics holds the prometheus collectors of the gateway.
//
// All methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "a2a_gateway"

// Metrics is the set of collectors exported by the gateway.
type Metrics struct {
	registry *prometheus.Registry

	llmCalls         *prometheus.CounterVec
	llmFailures      *prometheus.CounterVec
	validationErrors prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates the collectors and registers them on a fresh registry together
// with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Total inference turns started, by provider and model.",
		}, []string{"provider", "model"}),
		llmFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_failures_total",
			Help:      "Total inference turns that ended in a failure, by provider and model.",
		}, []string{"provider", "model"}),
		validationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_validation_errors_total",
			Help:      "Total content-safety shield violations.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests handled, by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.llmCalls,
		m.llmFailures,
		m.validationErrors,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// LLMCall counts a started turn.
func (m *Metrics) LLMCall(provider, model string) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(provider, model).Inc()
}

// LLMFailure counts a failed turn.
func (m *Metrics) LLMFailure(provider, model string) {
	if m == nil {
		return
	}
	m.llmFailures.WithLabelValues(provider, model).Inc()
}

// ValidationError counts a shield violation.
func (m *Metrics) ValidationError() {
	if m == nil {
		return
	}
	m.validationErrors.Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route, status).Observe(seconds)
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
