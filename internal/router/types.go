// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"errors"
	"fmt"
	"time"

	"github.com/jeranaias/llumdocs/internal/model"
)

// ============================================================================
// TASK KIND
// ============================================================================

// TaskKind selects the default model and fallback list.
type TaskKind = model.Capability

const (
	TaskText   = model.CapabilityText
	TaskVision = model.CapabilityVision
)

// Fallback lists, tried after the hint and the configured default.
var (
	TextFallbacks   = []string{"ollama/llama3.1:8b", "gpt-4o-mini", "gpt-4o", "gpt-3.5-turbo"}
	VisionFallbacks = []string{"ollama/qwen3-vl:8b", "o4-mini", "gpt-4o", "gpt-4o-mini"}
)

// Fallbacks returns the built-in fallback list for kind.
func Fallbacks(kind TaskKind) []string {
	if kind == TaskVision {
		return VisionFallbacks
	}
	return TextFallbacks
}

// ============================================================================
// SOURCE
// ============================================================================

// Source records where a candidate came from.
type Source int

const (
	SourceHint Source = iota
	SourceDefault
	SourceFallback
)

// String returns the human-readable name of the source.
func (s Source) String() string {
	switch s {
	case SourceHint:
		return "hint"
	case SourceDefault:
		return "default"
	case SourceFallback:
		return "fallback"
	default:
		return fmt.Sprintf("Source(%d)", s)
	}
}

// ============================================================================
// RESOLVED MODEL
// ============================================================================

// Params carries per-call settings derived from the configuration.
type Params struct {
	// Timeout bounds one invocation attempt.
	Timeout time.Duration
	// UnloadAfterUse asks the provider to free the model right after the
	// call. Always true for the local provider.
	UnloadAfterUse bool
	// APIBase is the provider endpoint root.
	APIBase string
}

// ResolvedModel is a model id paired with its provider and call parameters.
type ResolvedModel struct {
	ID       string
	Provider model.Provider
	Params   Params
	Source   Source
}

// ProviderModel returns the name the backend expects.
func (r ResolvedModel) ProviderModel() string {
	return model.ProviderModelName(r.ID)
}

// String renders "Ollama (llama3.1:8b)".
func (r ResolvedModel) String() string {
	return model.DisplayName(r.ID)
}

// Candidate is one entry of the ordered candidate list.
type Candidate struct {
	ID       string
	Provider model.Provider
	Source   Source
	Usable   bool
	// Reason explains why an unusable candidate was skipped.
	Reason string
}

// ModelOption is an entry of the display list.
type ModelOption struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Provider model.Provider `json:"provider"`
}

// ============================================================================
// ERRORS
// ============================================================================

// ErrNoModelAvailable matches every *NoModelAvailableError.
var ErrNoModelAvailable = errors.New("no model available")

// NoModelAvailableError is returned when no candidate is usable, or when a
// hint names a disabled provider.
type NoModelAvailableError struct {
	Kind TaskKind
	// Hint is set when the failure is due to an explicit hint.
	Hint   string
	Reason string
}

func (e *NoModelAvailableError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("Model %q is not available: %s", e.Hint, e.Reason)
	}
	if e.Kind == TaskVision {
		return "No vision LLM providers configured. Enable Ollama locally or set OPENAI_API_KEY."
	}
	return "No LLM providers configured. Enable Ollama locally or set OPENAI_API_KEY."
}

func (e *NoModelAvailableError) Is(target error) bool {
	return target == ErrNoModelAvailable
}

// InvalidHintError is returned for malformed model ids.
type InvalidHintError struct {
	Hint   string
	Reason string
}

func (e *InvalidHintError) Error() string {
	return fmt.Sprintf("invalid model %q: %s", e.Hint, e.Reason)
}
