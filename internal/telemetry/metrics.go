// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeranaias/llumdocs/internal/coerce"
	"github.com/jeranaias/llumdocs/internal/email"
	"github.com/jeranaias/llumdocs/internal/llm"
)

const namespace = "llumdocs"

// Metrics holds the process metrics. It implements llm.Observer.
type Metrics struct {
	registry *prometheus.Registry

	Invocations    *prometheus.CounterVec
	InvokeDuration *prometheus.HistogramVec
	Fallbacks      *prometheus.CounterVec
	Tokens         *prometheus.CounterVec
	Coercions      *prometheus.CounterVec
	PipelineLoads  *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
}

// NewMetrics registers the metrics on reg. A nil reg creates a fresh
// registry with the Go and process collectors.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Invocations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "attempts_total",
			Help:      "Provider attempts by task, provider and outcome.",
		}, []string{"task", "provider", "outcome"}),
		InvokeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "attempt_duration_seconds",
			Help:      "Provider attempt latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"provider"}),
		Fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "fallbacks_total",
			Help:      "Attempts that moved on to the next candidate, by error class.",
		}, []string{"class"}),
		Tokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens reported by providers.",
		}, []string{"provider", "direction"}),
		Coercions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coerce",
			Name:      "results_total",
			Help:      "Structured output coercions by operation and winning strategy.",
		}, []string{"op", "strategy"}),
		PipelineLoads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "email",
			Name:      "pipeline_loads_total",
			Help:      "Email pipeline loads by kind, device and outcome.",
		}, []string{"kind", "device", "outcome"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}
}

// Registry returns the registry the metrics live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe implements llm.Observer.
func (m *Metrics) Observe(e llm.Event) {
	provider := string(e.Provider)
	outcome := "success"
	if !e.Success {
		outcome = string(e.Class)
		if e.Class.Transient() {
			m.Fallbacks.WithLabelValues(string(e.Class)).Inc()
		}
	}
	m.Invocations.WithLabelValues(string(e.Kind), provider, outcome).Inc()
	m.InvokeDuration.WithLabelValues(provider).Observe(e.Duration.Seconds())
	if e.PromptTokens > 0 {
		m.Tokens.WithLabelValues(provider, "prompt").Add(float64(e.PromptTokens))
	}
	if e.CompletionTokens > 0 {
		m.Tokens.WithLabelValues(provider, "completion").Add(float64(e.CompletionTokens))
	}
}

// ObserveCoercion counts a coercion outcome. Pass it to
// coerce.Coercer.WithHook.
func (m *Metrics) ObserveCoercion(o coerce.Outcome) {
	strategy := o.Strategy
	if o.Err != nil {
		strategy = "failed"
	}
	m.Coercions.WithLabelValues(o.Op, strategy).Inc()
}

// ObservePipelineLoad counts a pipeline load. Pass it to
// email.WithLoadHook.
func (m *Metrics) ObservePipelineLoad(e email.LoadEvent) {
	outcome := "success"
	if e.Err != nil {
		outcome = "error"
	}
	m.PipelineLoads.WithLabelValues(string(e.Kind), string(e.Device), outcome).Inc()
}

// ObserveRequest counts one HTTP response for route.
func (m *Metrics) ObserveRequest(route string, status int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
