// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package email

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// PipelineKind names one of the classification pipelines.
type PipelineKind string

const (
	KindZeroShot  PipelineKind = "zero-shot-classification"
	KindPhishing  PipelineKind = "text-classification"
	KindSentiment PipelineKind = "sentiment-analysis"
)

// Kinds lists every pipeline kind.
var Kinds = []PipelineKind{KindZeroShot, KindPhishing, KindSentiment}

// Device is where a pipeline runs.
type Device string

const (
	DeviceGPU Device = "gpu"
	DeviceCPU Device = "cpu"
)

// Score is one label and its probability.
type Score struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Input is a single inference request. Labels, MultiLabel and Template are
// only read by zero-shot pipelines.
type Input struct {
	Text       string
	Labels     []string
	MultiLabel bool
	Template   string
}

// Pipeline runs inference for one model on one device.
type Pipeline interface {
	Kind() PipelineKind
	Device() Device
	Run(ctx context.Context, in Input) ([]Score, error)
}

// Loader makes a pipeline available on a device.
type Loader interface {
	Load(ctx context.Context, kind PipelineKind, modelID string, device Device) (Pipeline, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, kind PipelineKind, modelID string, device Device) (Pipeline, error)

func (f LoaderFunc) Load(ctx context.Context, kind PipelineKind, modelID string, device Device) (Pipeline, error) {
	return f(ctx, kind, modelID, device)
}

// serialPipeline runs one inference at a time.
type serialPipeline struct {
	Pipeline
	mu sync.Mutex
}

func (p *serialPipeline) Run(ctx context.Context, in Input) ([]Score, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Pipeline.Run(ctx, in)
}

// =============================================================================
// LABELS
// =============================================================================

// NormalizeLabels trims labels, drops blanks and duplicates, and keeps the
// first spelling of each.
func NormalizeLabels(labels []string) ([]string, error) {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("candidate_labels must include at least one non-empty label")
	}
	return out, nil
}

// PhishingLabel maps generic model labels to readable ones: LABEL_0 is
// safe, LABEL_1 phishing, LABEL_N class_N. Other labels pass through.
func PhishingLabel(label string) string {
	rest, ok := strings.CutPrefix(label, "LABEL_")
	if !ok {
		return label
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return label
	}
	switch n {
	case 0:
		return "safe"
	case 1:
		return "phishing"
	}
	return "class_" + rest
}

// sortScores orders scores best first, ties by label.
func sortScores(scores []Score) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Label < scores[j].Label
	})
}
