// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jeranaias/llumdocs/internal/config"
	"github.com/jeranaias/llumdocs/internal/model"
)

func testConfig(ollama bool, apiKey string) *config.Config {
	cfg := config.Default()
	cfg.Ollama.Disabled = !ollama
	cfg.OpenAI.APIKey = apiKey
	return cfg
}

func ids(models []ResolvedModel) []string {
	out := make([]string, len(models))
	for i, m := range models {
		out[i] = m.ID
	}
	return out
}

// ============================================================================
// RESOLVE
// ============================================================================

func TestResolve_HintWins(t *testing.T) {
	r := New(testConfig(true, "sk-test"))
	rm, err := r.Resolve(TaskText, "gpt-4o")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if rm.ID != "gpt-4o" || rm.Provider != model.ProviderOpenAI || rm.Source != SourceHint {
		t.Errorf("Resolve() = %+v", rm)
	}
}

func TestResolve_HintWithDisabledProviderFails(t *testing.T) {
	r := New(testConfig(true, ""))
	_, err := r.Resolve(TaskText, "gpt-4o")
	if !errors.Is(err, ErrNoModelAvailable) {
		t.Fatalf("expected ErrNoModelAvailable, got %v", err)
	}
	var nm *NoModelAvailableError
	if !errors.As(err, &nm) || nm.Hint != "gpt-4o" {
		t.Errorf("error = %#v", err)
	}

	r = New(testConfig(false, "sk-test"))
	if _, err := r.Resolve(TaskText, "ollama/llama3.1:8b"); !errors.Is(err, ErrNoModelAvailable) {
		t.Errorf("disabled ollama hint: got %v", err)
	}
}

func TestResolve_MalformedHint(t *testing.T) {
	r := New(testConfig(true, "sk-test"))
	for _, hint := range []string{"ollama/", "gpt 4o", "ollama/llama 3"} {
		_, err := r.Resolve(TaskText, hint)
		var ih *InvalidHintError
		if !errors.As(err, &ih) {
			t.Errorf("Resolve(%q) error = %v, want InvalidHintError", hint, err)
		}
	}
}

func TestResolve_DefaultBeforeFallback(t *testing.T) {
	cfg := testConfig(true, "sk-test")
	cfg.Models.DefaultModel = "gpt-4o"
	rm, err := New(cfg).Resolve(TaskText, "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if rm.ID != "gpt-4o" || rm.Source != SourceDefault {
		t.Errorf("Resolve() = %+v, want configured default", rm)
	}
}

func TestResolve_OllamaOnly(t *testing.T) {
	rm, err := New(testConfig(true, "")).Resolve(TaskText, "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if rm.ID != "ollama/llama3.1:8b" {
		t.Errorf("ID = %q", rm.ID)
	}
	if !rm.Params.UnloadAfterUse {
		t.Error("local models must unload after use")
	}
	if rm.Params.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v", rm.Params.Timeout)
	}
	if rm.Params.APIBase != config.DefaultOllamaBase {
		t.Errorf("APIBase = %q", rm.Params.APIBase)
	}
	if rm.ProviderModel() != "llama3.1:8b" {
		t.Errorf("ProviderModel() = %q", rm.ProviderModel())
	}
}

func TestResolve_HostedOnlyVision(t *testing.T) {
	rm, err := New(testConfig(false, "sk-test")).Resolve(TaskVision, "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if rm.ID != "o4-mini" {
		t.Errorf("ID = %q, want o4-mini", rm.ID)
	}
	if rm.Params.UnloadAfterUse {
		t.Error("hosted models never unload")
	}
	if rm.Params.Timeout != 120*time.Second {
		t.Errorf("vision Timeout = %v", rm.Params.Timeout)
	}
}

func TestResolve_NothingConfigured(t *testing.T) {
	r := New(testConfig(false, ""))

	_, err := r.Resolve(TaskText, "")
	if err == nil || err.Error() != "No LLM providers configured. Enable Ollama locally or set OPENAI_API_KEY." {
		t.Errorf("text error = %v", err)
	}
	_, err = r.Resolve(TaskVision, "")
	if err == nil || err.Error() != "No vision LLM providers configured. Enable Ollama locally or set OPENAI_API_KEY." {
		t.Errorf("vision error = %v", err)
	}
}

func TestResolve_LocalOnlyBlocksHosted(t *testing.T) {
	cfg := testConfig(false, "sk-test")
	cfg.LocalOnly = true
	if _, err := New(cfg).Resolve(TaskText, ""); !errors.Is(err, ErrNoModelAvailable) {
		t.Errorf("local-only with ollama disabled: got %v", err)
	}
}

// ============================================================================
// CANDIDATES
// ============================================================================

func TestCandidates_Deduplicated(t *testing.T) {
	cfg := testConfig(true, "sk-test")
	cfg.Models.DefaultVisionModel = "gpt-4o"
	got := New(cfg).Candidates(TaskVision, "o4-mini")

	var gotIDs []string
	for _, c := range got {
		gotIDs = append(gotIDs, c.ID)
	}
	want := []string{"o4-mini", "gpt-4o", "ollama/qwen3-vl:8b", "gpt-4o-mini"}
	if !reflect.DeepEqual(gotIDs, want) {
		t.Errorf("Candidates() = %v, want %v", gotIDs, want)
	}
	if got[0].Source != SourceHint || got[1].Source != SourceDefault || got[2].Source != SourceFallback {
		t.Errorf("sources = %v %v %v", got[0].Source, got[1].Source, got[2].Source)
	}
}

func TestUsable_SkipsDisabled(t *testing.T) {
	models, err := New(testConfig(false, "sk-test")).Usable(TaskText, "")
	if err != nil {
		t.Fatalf("Usable() error = %v", err)
	}
	want := []string{"gpt-4o-mini", "gpt-4o", "gpt-3.5-turbo"}
	if !reflect.DeepEqual(ids(models), want) {
		t.Errorf("Usable() = %v, want %v", ids(models), want)
	}
}

func TestUsable_HintIsExclusive(t *testing.T) {
	models, err := New(testConfig(true, "sk-test")).Usable(TaskText, "gpt-4o")
	if err != nil {
		t.Fatalf("Usable() error = %v", err)
	}
	if !reflect.DeepEqual(ids(models), []string{"gpt-4o"}) {
		t.Errorf("Usable() = %v", ids(models))
	}
}

func TestAvailable_DisplayLabels(t *testing.T) {
	opts := New(testConfig(true, "sk-test")).Available(TaskText)
	var labels []string
	for _, o := range opts {
		labels = append(labels, o.Label)
	}
	want := []string{"Ollama (llama3.1:8b)", "OpenAI (gpt-4o-mini)", "OpenAI (gpt-4o)", "OpenAI (gpt-3.5-turbo)"}
	if !reflect.DeepEqual(labels, want) {
		t.Errorf("Available() = %v, want %v", labels, want)
	}

	if got := New(testConfig(false, "")).Available(TaskVision); len(got) != 0 {
		t.Errorf("Available() with nothing enabled = %v", got)
	}
}

func TestSourceString(t *testing.T) {
	tests := map[Source]string{
		SourceHint:     "hint",
		SourceDefault:  "default",
		SourceFallback: "fallback",
		Source(9):      "Source(9)",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("Source(%d).String() = %q, want %q", int(s), s.String(), want)
		}
	}
}
