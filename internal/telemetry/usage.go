// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"sort"
	"sync"
	"time"

	"github.com/jeranaias/llumdocs/internal/llm"
	"github.com/jeranaias/llumdocs/internal/model"
)

// =============================================================================
// PRICING
// =============================================================================

// Price is USD per million tokens.
type Price struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// Prices lists hosted model list prices. Local models cost nothing.
var Prices = map[string]Price{
	"gpt-4o-mini":   {Input: 0.15, Output: 0.60},
	"gpt-4o":        {Input: 2.50, Output: 10.00},
	"gpt-3.5-turbo": {Input: 0.50, Output: 1.50},
	"o4-mini":       {Input: 1.10, Output: 4.40},
}

// referenceModel prices local tokens when estimating savings.
const referenceModel = "gpt-4o-mini"

// CostUSD estimates the cost of a call to modelID.
func CostUSD(modelID string, promptTokens, completionTokens int) float64 {
	if model.ProviderOf(modelID) == model.ProviderOllama {
		return 0
	}
	p := Prices[modelID]
	return (float64(promptTokens)*p.Input + float64(completionTokens)*p.Output) / 1e6
}

// =============================================================================
// USAGE TRACKER
// =============================================================================

// ModelUsage accumulates successful calls to one model.
type ModelUsage struct {
	Model            string  `json:"model"`
	Provider         string  `json:"provider"`
	Calls            int     `json:"calls"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// Usage is a point-in-time copy of the tracker.
type Usage struct {
	Since     time.Time    `json:"since"`
	TotalCost float64      `json:"total_cost_usd"`
	Savings   float64      `json:"savings_usd"` // local tokens priced at the reference model
	Models    []ModelUsage `json:"models"`
}

// UsageTracker keeps token usage per model since start. It implements
// llm.Observer; failed attempts are ignored.
type UsageTracker struct {
	mu      sync.RWMutex
	since   time.Time
	models  map[string]*ModelUsage
	savings float64
}

// NewUsageTracker creates an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{
		since:  time.Now(),
		models: make(map[string]*ModelUsage),
	}
}

// Observe implements llm.Observer.
func (u *UsageTracker) Observe(e llm.Event) {
	if !e.Success {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	m, ok := u.models[e.Model]
	if !ok {
		m = &ModelUsage{Model: e.Model, Provider: string(e.Provider)}
		u.models[e.Model] = m
	}
	m.Calls++
	m.PromptTokens += e.PromptTokens
	m.CompletionTokens += e.CompletionTokens
	m.CostUSD += CostUSD(e.Model, e.PromptTokens, e.CompletionTokens)

	if e.Provider == model.ProviderOllama {
		u.savings += CostUSD(referenceModel, e.PromptTokens, e.CompletionTokens)
	}
}

// Snapshot returns a copy, models ordered by cost then calls.
func (u *UsageTracker) Snapshot() Usage {
	u.mu.RLock()
	defer u.mu.RUnlock()

	out := Usage{Since: u.since, Savings: u.savings, Models: make([]ModelUsage, 0, len(u.models))}
	for _, m := range u.models {
		out.Models = append(out.Models, *m)
		out.TotalCost += m.CostUSD
	}
	sort.Slice(out.Models, func(i, j int) bool {
		a, b := out.Models[i], out.Models[j]
		if a.CostUSD != b.CostUSD {
			return a.CostUSD > b.CostUSD
		}
		if a.Calls != b.Calls {
			return a.Calls > b.Calls
		}
		return a.Model < b.Model
	})
	return out
}

// Reset clears the counters and restarts the window.
func (u *UsageTracker) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.since = time.Now()
	u.models = make(map[string]*ModelUsage)
	u.savings = 0
}
