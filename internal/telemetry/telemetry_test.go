// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"errors"
	"io"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jeranaias/llumdocs/internal/coerce"
	"github.com/jeranaias/llumdocs/internal/email"
	"github.com/jeranaias/llumdocs/internal/llm"
	"github.com/jeranaias/llumdocs/internal/model"
	"github.com/jeranaias/llumdocs/internal/router"
)

func TestMetrics_Observe(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.Observe(llm.Event{Kind: router.TaskText, Provider: model.ProviderOllama, Class: llm.ClassConnection, Err: errors.New("refused")})
	m.Observe(llm.Event{Kind: router.TaskText, Provider: model.ProviderOpenAI, Class: llm.ClassAuth, Err: errors.New("401")})
	m.Observe(llm.Event{
		Kind: router.TaskText, Provider: model.ProviderOpenAI, Success: true,
		Duration: 300 * time.Millisecond, PromptTokens: 10, CompletionTokens: 20,
	})

	if got := testutil.ToFloat64(m.Invocations.WithLabelValues("text", "openai", "success")); got != 1 {
		t.Errorf("success attempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Invocations.WithLabelValues("text", "ollama", "connection")); got != 1 {
		t.Errorf("connection failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Fallbacks.WithLabelValues("connection")); got != 1 {
		t.Errorf("fallbacks = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.Fallbacks); got != 1 {
		t.Errorf("auth failure must not count as fallback, got %d series", got)
	}
	if got := testutil.ToFloat64(m.Tokens.WithLabelValues("openai", "completion")); got != 20 {
		t.Errorf("completion tokens = %v, want 20", got)
	}
}

func TestMetrics_Hooks(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveCoercion(coerce.Outcome{Op: "object", Strategy: coerce.StrategySpan})
	m.ObserveCoercion(coerce.Outcome{Op: "object", Err: errors.New("bad")})
	m.ObservePipelineLoad(email.LoadEvent{Kind: email.KindPhishing, Device: email.DeviceGPU, Err: email.ErrDeviceUnavailable})

	if got := testutil.ToFloat64(m.Coercions.WithLabelValues("object", "json-span")); got != 1 {
		t.Errorf("span coercions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Coercions.WithLabelValues("object", "failed")); got != 1 {
		t.Errorf("failed coercions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PipelineLoads.WithLabelValues("text-classification", "gpu", "error")); got != 1 {
		t.Errorf("pipeline load errors = %v, want 1", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(nil)
	m.ObserveCoercion(coerce.Outcome{Op: "list", Strategy: coerce.StrategyLines})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `llumdocs_coerce_results_total{op="list",strategy="lines"} 1`) {
		t.Errorf("metrics output missing coercion counter:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("default registry should include Go collector")
	}
}

func TestCostUSD(t *testing.T) {
	tests := []struct {
		model string
		in    int
		out   int
		want  float64
	}{
		{"gpt-4o-mini", 1_000_000, 1_000_000, 0.75},
		{"gpt-4o", 1000, 0, 0.0025},
		{"ollama/llama3.1:8b", 1_000_000, 1_000_000, 0},
		{"unknown-model", 1000, 1000, 0},
	}
	for _, tt := range tests {
		if got := CostUSD(tt.model, tt.in, tt.out); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("CostUSD(%s) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestUsageTracker(t *testing.T) {
	u := NewUsageTracker()

	u.Observe(llm.Event{Model: "gpt-4o", Provider: model.ProviderOpenAI, Success: true, PromptTokens: 1000, CompletionTokens: 1000})
	u.Observe(llm.Event{Model: "ollama/llama3.1:8b", Provider: model.ProviderOllama, Success: true, PromptTokens: 1_000_000})
	u.Observe(llm.Event{Model: "ollama/llama3.1:8b", Provider: model.ProviderOllama, Success: true})
	u.Observe(llm.Event{Model: "gpt-4o-mini", Provider: model.ProviderOpenAI, Class: llm.ClassTimeout})

	snap := u.Snapshot()
	if len(snap.Models) != 2 {
		t.Fatalf("tracked %d models, want 2 (failed attempts ignored)", len(snap.Models))
	}
	if snap.Models[0].Model != "gpt-4o" {
		t.Errorf("most expensive model = %s, want gpt-4o", snap.Models[0].Model)
	}
	if math.Abs(snap.TotalCost-0.0125) > 1e-12 {
		t.Errorf("TotalCost = %v, want 0.0125", snap.TotalCost)
	}
	if math.Abs(snap.Savings-0.15) > 1e-12 {
		t.Errorf("Savings = %v, want 0.15", snap.Savings)
	}
	if snap.Models[1].Calls != 2 {
		t.Errorf("local calls = %d, want 2", snap.Models[1].Calls)
	}

	u.Reset()
	if got := u.Snapshot(); len(got.Models) != 0 || got.Savings != 0 {
		t.Errorf("after Reset: %+v", got)
	}
}
