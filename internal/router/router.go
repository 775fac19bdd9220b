// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"strings"
	"unicode"

	"github.com/jeranaias/llumdocs/internal/config"
	"github.com/jeranaias/llumdocs/internal/model"
)

// Resolver picks models from an immutable configuration snapshot.
type Resolver struct {
	cfg *config.Config
}

// New creates a resolver. A nil cfg means built-in defaults.
func New(cfg *config.Config) *Resolver {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Resolver{cfg: cfg}
}

// Config returns the snapshot the resolver was built from.
func (r *Resolver) Config() *config.Config {
	return r.cfg
}

// ============================================================================
// RESOLUTION
// ============================================================================

// Resolve returns the first usable candidate for kind.
func (r *Resolver) Resolve(kind TaskKind, hint string) (ResolvedModel, error) {
	usable, err := r.Usable(kind, hint)
	if err != nil {
		return ResolvedModel{}, err
	}
	return usable[0], nil
}

// Usable returns every usable candidate in order. With a hint the list is
// exactly the hint. The returned slice is never empty when err is nil.
func (r *Resolver) Usable(kind TaskKind, hint string) ([]ResolvedModel, error) {
	hint = strings.TrimSpace(hint)
	if hint != "" {
		if err := ValidateModelID(hint); err != nil {
			return nil, err
		}
		if ok, reason := r.providerUsable(model.ProviderOf(hint)); !ok {
			return nil, &NoModelAvailableError{Kind: kind, Hint: hint, Reason: reason}
		}
		return []ResolvedModel{r.resolved(kind, hint, SourceHint)}, nil
	}

	var out []ResolvedModel
	for _, c := range r.Candidates(kind, "") {
		if c.Usable {
			out = append(out, r.resolved(kind, c.ID, c.Source))
		}
	}
	if len(out) == 0 {
		return nil, &NoModelAvailableError{Kind: kind}
	}
	return out, nil
}

// Candidates returns the full ordered, deduplicated candidate list with
// usability marked. A malformed hint is skipped here; Usable reports it.
func (r *Resolver) Candidates(kind TaskKind, hint string) []Candidate {
	seen := make(map[string]bool)
	var out []Candidate
	add := func(id string, src Source) {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] || ValidateModelID(id) != nil {
			return
		}
		seen[id] = true
		p := model.ProviderOf(id)
		ok, reason := r.providerUsable(p)
		out = append(out, Candidate{ID: id, Provider: p, Source: src, Usable: ok, Reason: reason})
	}

	add(hint, SourceHint)
	add(r.defaultFor(kind), SourceDefault)
	for _, id := range Fallbacks(kind) {
		add(id, SourceFallback)
	}
	return out
}

// Available lists the enabled fallback models for display.
func (r *Resolver) Available(kind TaskKind) []ModelOption {
	var out []ModelOption
	for _, c := range r.Candidates(kind, "") {
		if !c.Usable {
			continue
		}
		out = append(out, ModelOption{ID: c.ID, Label: model.DisplayName(c.ID), Provider: c.Provider})
	}
	return out
}

// ============================================================================
// HELPERS
// ============================================================================

// ValidateModelID rejects ids that cannot name a model.
func ValidateModelID(id string) error {
	if id == "" {
		return &InvalidHintError{Hint: id, Reason: "empty model id"}
	}
	if strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return &InvalidHintError{Hint: id, Reason: "model id contains whitespace"}
	}
	if model.ProviderOf(id) == model.ProviderOllama && model.ProviderModelName(id) == "" {
		return &InvalidHintError{Hint: id, Reason: "missing model name after " + model.OllamaPrefix}
	}
	return nil
}

func (r *Resolver) defaultFor(kind TaskKind) string {
	if kind == TaskVision {
		return r.cfg.Models.DefaultVisionModel
	}
	return r.cfg.Models.DefaultModel
}

func (r *Resolver) providerUsable(p model.Provider) (bool, string) {
	switch p {
	case model.ProviderOllama:
		if !r.cfg.OllamaEnabled() {
			return false, "Ollama is disabled"
		}
	default:
		if r.cfg.LocalOnly {
			return false, "hosted providers are blocked in local-only mode"
		}
		if !r.cfg.HostedEnabled() {
			return false, "OPENAI_API_KEY is not set"
		}
	}
	return true, ""
}

func (r *Resolver) resolved(kind TaskKind, id string, src Source) ResolvedModel {
	p := model.ProviderOf(id)
	params := Params{Timeout: r.cfg.LLMTimeout()}
	if kind == TaskVision {
		params.Timeout = r.cfg.VisionTimeout()
	}
	if p == model.ProviderOllama {
		params.UnloadAfterUse = true
		params.APIBase = r.cfg.Ollama.APIBase
	} else {
		params.APIBase = r.cfg.OpenAI.BaseURL
	}
	return ResolvedModel{ID: id, Provider: p, Params: params, Source: src}
}
