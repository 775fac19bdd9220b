// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// =============================================================================
// PROVIDERS AND CAPABILITIES
// =============================================================================

// Provider identifies the backend that serves a model.
type Provider string

const (
	// ProviderOllama is the local Ollama server.
	ProviderOllama Provider = "ollama"
	// ProviderOpenAI is the hosted OpenAI-compatible API.
	ProviderOpenAI Provider = "openai"
)

// OllamaPrefix marks a model id as served by the local provider.
const OllamaPrefix = "ollama/"

// DisplayName returns the provider name shown to users.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderOllama:
		return "Ollama"
	case ProviderOpenAI:
		return "OpenAI"
	default:
		return string(p)
	}
}

// ProviderOf derives the provider from a model id.
func ProviderOf(id string) Provider {
	if strings.HasPrefix(id, OllamaPrefix) {
		return ProviderOllama
	}
	return ProviderOpenAI
}

// ProviderModelName strips the provider routing prefix, yielding the name
// the backend itself expects ("ollama/llama3.1:8b" -> "llama3.1:8b").
func ProviderModelName(id string) string {
	return strings.TrimPrefix(id, OllamaPrefix)
}

// Capability tags what kind of task a model serves.
type Capability string

const (
	CapabilityText   Capability = "text"
	CapabilityVision Capability = "vision"
)

// =============================================================================
// MODEL INFO
// =============================================================================

// ModelInfo describes a model llumdocs knows by name.
type ModelInfo struct {
	ID          string       `json:"id"`
	Provider    Provider     `json:"provider"`
	Caps        []Capability `json:"capabilities"`
	Description string       `json:"description"`
}

// DisplayName renders "Ollama (llama3.1:8b)" style labels.
func (m ModelInfo) DisplayName() string {
	return DisplayName(m.ID)
}

// Supports reports whether the model is tagged with c.
func (m ModelInfo) Supports(c Capability) bool {
	for _, have := range m.Caps {
		if have == c {
			return true
		}
	}
	return false
}

// DisplayName renders the display label for any model id, known or not.
func DisplayName(id string) string {
	return fmt.Sprintf("%s (%s)", ProviderOf(id).DisplayName(), ProviderModelName(id))
}

// Catalogue lists the models referenced by the built-in fallback lists.
var Catalogue = []ModelInfo{
	{
		ID:          "ollama/llama3.1:8b",
		Provider:    ProviderOllama,
		Caps:        []Capability{CapabilityText},
		Description: "Local general-purpose text model",
	},
	{
		ID:          "ollama/qwen3-vl:8b",
		Provider:    ProviderOllama,
		Caps:        []Capability{CapabilityText, CapabilityVision},
		Description: "Local vision-language model",
	},
	{
		ID:          "gpt-4o-mini",
		Provider:    ProviderOpenAI,
		Caps:        []Capability{CapabilityText, CapabilityVision},
		Description: "Fast hosted model, default for document extraction",
	},
	{
		ID:          "gpt-4o",
		Provider:    ProviderOpenAI,
		Caps:        []Capability{CapabilityText, CapabilityVision},
		Description: "Hosted flagship model",
	},
	{
		ID:          "gpt-3.5-turbo",
		Provider:    ProviderOpenAI,
		Caps:        []Capability{CapabilityText},
		Description: "Legacy hosted text model",
	},
	{
		ID:          "o4-mini",
		Provider:    ProviderOpenAI,
		Caps:        []Capability{CapabilityText, CapabilityVision},
		Description: "Hosted reasoning model with image input",
	},
}

// Lookup finds a catalogue entry by id.
func Lookup(id string) (ModelInfo, bool) {
	for _, m := range Catalogue {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}
