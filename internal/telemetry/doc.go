// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry exports Prometheus metrics and tracks token usage.
//
// # Key Types
//
//   - Metrics: counters and histograms for invocations, fallbacks,
//     coercion strategies and email pipeline loads
//   - UsageTracker: token totals and estimated hosted cost per model
//
// # Usage
//
//	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
//	usage := telemetry.NewUsageTracker()
//	client := llm.New(cfg, llm.WithObserver(metrics), llm.WithObserver(usage))
//	http.Handle("/metrics", metrics.Handler())
package telemetry
