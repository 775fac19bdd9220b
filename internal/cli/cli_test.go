// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/llumdocs/internal/config"
	"github.com/jeranaias/llumdocs/internal/email"
	"github.com/jeranaias/llumdocs/internal/llm"
	"github.com/jeranaias/llumdocs/internal/model"
	"github.com/jeranaias/llumdocs/internal/router"
	"github.com/jeranaias/llumdocs/internal/service"
	"github.com/jeranaias/llumdocs/internal/storage"
)

// =============================================================================
// HELPERS
// =============================================================================

type fakeInvoker struct {
	mu    sync.Mutex
	reply string
	err   error
	kinds []router.TaskKind
	hints []string
	convs []model.Conversation
}

func (f *fakeInvoker) Invoke(_ context.Context, conv model.Conversation, kind router.TaskKind, hint string, _ ...llm.Option) (llm.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
	f.hints = append(f.hints, hint)
	f.convs = append(f.convs, conv)
	if f.err != nil {
		return llm.Result{}, f.err
	}
	id := hint
	if id == "" {
		id = "ollama/llama3.1:8b"
	}
	return llm.Result{Text: f.reply, Model: id, Provider: model.ProviderOf(id)}, nil
}

type cliRun struct {
	dir    string
	env    map[string]string
	stdin  string
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newRun(t *testing.T) *cliRun {
	t.Helper()
	dir := t.TempDir()
	return &cliRun{
		dir: dir,
		env: map[string]string{"LLUMDOCS_HISTORY_DB": filepath.Join(dir, "history.db")},
	}
}

func (r *cliRun) configPath() string {
	return filepath.Join(r.dir, "config.toml")
}

func (r *cliRun) exec(inv *fakeInvoker, args ...string) error {
	a := newApp()
	a.getenv = func(k string) string { return r.env[k] }
	a.newInvoker = func(*config.Config, ...llm.ClientOption) service.Invoker { return inv }
	defer a.close()

	root := NewRootCmd("test", a)
	root.SetArgs(append([]string{"--config", r.configPath()}, args...))
	root.SetIn(strings.NewReader(r.stdin))
	root.SetOut(&r.stdout)
	root.SetErr(&r.stderr)
	return root.Execute()
}

func decodeData(t *testing.T, out []byte, v any) JSONResponse {
	t.Helper()
	var resp JSONResponse
	resp.Data = v
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	return resp
}

// =============================================================================
// FEATURE COMMANDS
// =============================================================================

func TestTranslateCmd(t *testing.T) {
	r := newRun(t)
	inv := &fakeInvoker{reply: "Good morning everyone"}

	if err := r.exec(inv, "translate", "--to", "en", "Bon", "dia", "a", "tothom"); err != nil {
		t.Fatalf("translate: %v", err)
	}
	if got := strings.TrimSpace(r.stdout.String()); got != "Good morning everyone" {
		t.Errorf("stdout = %q", got)
	}
	if !strings.Contains(r.stderr.String(), "ollama/llama3.1:8b") {
		t.Errorf("stderr should name the model, got %q", r.stderr.String())
	}
	if len(inv.kinds) != 1 || inv.kinds[0] != router.TaskText || inv.hints[0] != "" {
		t.Errorf("calls = %v %v", inv.kinds, inv.hints)
	}
	user := inv.convs[0][len(inv.convs[0])-1].Content
	if !strings.Contains(user, "Bon dia a tothom") {
		t.Errorf("prompt missing joined text: %q", user)
	}
}

func TestTranslateCmd_JSONAndModelHint(t *testing.T) {
	r := newRun(t)
	inv := &fakeInvoker{reply: "Hola"}

	if err := r.exec(inv, "--json", "--model", "gpt-4o-mini", "translate", "--to", "es", "Hello"); err != nil {
		t.Fatalf("translate: %v", err)
	}
	var data map[string]string
	resp := decodeData(t, r.stdout.Bytes(), &data)
	if !resp.Success || resp.Command != "translate" {
		t.Errorf("envelope = %+v", resp)
	}
	if data["translated_text"] != "Hola" || data["model"] != "gpt-4o-mini" {
		t.Errorf("data = %v", data)
	}
	if inv.hints[0] != "gpt-4o-mini" {
		t.Errorf("hint = %q", inv.hints[0])
	}
}

func TestSummarizeCmd_Stdin(t *testing.T) {
	r := newRun(t)
	r.stdin = "A long report about quarterly results."
	inv := &fakeInvoker{reply: "Results were good."}

	if err := r.exec(inv, "summarize", "--type", "executive"); err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !strings.Contains(r.stdout.String(), "Results were good.") {
		t.Errorf("stdout = %q", r.stdout.String())
	}
	user := inv.convs[0][len(inv.convs[0])-1].Content
	if !strings.Contains(user, "executive") || !strings.Contains(user, "quarterly results") {
		t.Errorf("prompt = %q", user)
	}
}

func TestFeatureCmd_File(t *testing.T) {
	r := newRun(t)
	path := filepath.Join(r.dir, "notes.txt")
	if err := os.WriteFile(path, []byte("the server is down again"), 0600); err != nil {
		t.Fatal(err)
	}
	inv := &fakeInvoker{reply: "Subject: Service incident"}

	if err := r.exec(inv, "tone", "--tone", "serious_important", "--lang", "ca", "--file", path); err != nil {
		t.Fatalf("tone: %v", err)
	}
	if !strings.Contains(r.stdout.String(), "Service incident") {
		t.Errorf("stdout = %q", r.stdout.String())
	}
	if !strings.Contains(inv.convs[0][len(inv.convs[0])-1].Content, "the server is down again") {
		t.Error("file content should reach the prompt")
	}
}

func TestRewriteCmds(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		field string
	}{
		{"simplify", []string{"simplify", "--level", "teenage", "Text"}, "plain_text"},
		{"technical", []string{"technical", "--domain", "software", "Text"}, "technical_text"},
		{"tone", []string{"tone", "Text"}, "email"},
		{"summarize", []string{"summarize", "Text"}, "summary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRun(t)
			inv := &fakeInvoker{reply: "rewritten"}
			if err := r.exec(inv, append([]string{"--json"}, tt.args...)...); err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			var data map[string]string
			decodeData(t, r.stdout.Bytes(), &data)
			if data[tt.field] != "rewritten" {
				t.Errorf("data = %v, want %s", data, tt.field)
			}
		})
	}
}

func TestKeywordsCmd(t *testing.T) {
	r := newRun(t)
	inv := &fakeInvoker{reply: `["invoice", "payment", "Invoice"]`}

	if err := r.exec(inv, "keywords", "--max", "5", "Pay the invoice."); err != nil {
		t.Fatalf("keywords: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(r.stdout.String()), "\n")
	if len(lines) != 2 || lines[0] != "invoice" || lines[1] != "payment" {
		t.Errorf("lines = %q", lines)
	}
}

func TestDescribeCmd(t *testing.T) {
	r := newRun(t)
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(r.dir, "photo.png")
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
	inv := &fakeInvoker{reply: "A red dot."}

	if err := r.exec(inv, "describe", "--detail", "detailed", path); err != nil {
		t.Fatalf("describe: %v", err)
	}
	if !strings.Contains(r.stdout.String(), "A red dot.") {
		t.Errorf("stdout = %q", r.stdout.String())
	}
	if inv.kinds[0] != router.TaskVision {
		t.Errorf("kind = %v, want vision", inv.kinds[0])
	}
}

func TestDescribeCmd_TooLarge(t *testing.T) {
	r := newRun(t)
	r.env["LLUMDOCS_MAX_IMAGE_BYTES"] = "10"
	path := filepath.Join(r.dir, "big.png")
	if err := os.WriteFile(path, bytes.Repeat([]byte{1}, 64), 0600); err != nil {
		t.Fatal(err)
	}
	inv := &fakeInvoker{reply: "never"}

	err := r.exec(inv, "describe", path)
	if GetExitCode(err) != ExitUsageError {
		t.Fatalf("err = %v, exit = %d", err, GetExitCode(err))
	}
	if len(inv.kinds) != 0 {
		t.Error("oversized image must not reach a model")
	}
}

func TestExtractCmd(t *testing.T) {
	r := newRun(t)
	inv := &fakeInvoker{reply: `{"numero_albaran": "A-1", "nombre_empresa": "Acme SL", "total_albaran": 12.1}`}

	if err := r.exec(inv, "--json", "extract", "--type", "deliverynote", "ALBARAN A-1 Acme SL total 12,10"); err != nil {
		t.Fatalf("extract: %v", err)
	}
	var data struct {
		DocType string         `json:"doc_type"`
		Data    map[string]any `json:"data"`
		Legend  []string       `json:"legend"`
	}
	decodeData(t, r.stdout.Bytes(), &data)
	if data.DocType != "deliverynote" || data.Data["numero_albaran"] != "A-1" {
		t.Errorf("extraction = %+v", data)
	}
	if len(data.Legend) == 0 {
		t.Error("legend should not be empty")
	}
}

func TestExtractCmd_UnknownType(t *testing.T) {
	r := newRun(t)
	err := r.exec(&fakeInvoker{}, "extract", "--type", "passport", "text")
	if GetExitCode(err) != ExitUsageError {
		t.Errorf("err = %v, exit = %d", err, GetExitCode(err))
	}
}

func TestEmailCmd_Disabled(t *testing.T) {
	r := newRun(t)
	err := r.exec(&fakeInvoker{}, "email", "Please reset my password")
	var disabled *email.FeatureDisabledError
	if !errors.As(err, &disabled) {
		t.Fatalf("err = %v, want FeatureDisabledError", err)
	}
	if GetExitCode(err) != ExitConfigError {
		t.Errorf("exit = %d", GetExitCode(err))
	}
}

func TestFeatureCmd_Errors(t *testing.T) {
	tests := []struct {
		name     string
		inv      *fakeInvoker
		args     []string
		stdin    string
		wantExit int
	}{
		{"bad target", &fakeInvoker{reply: "x"}, []string{"translate", "--to", "fr", "hi"}, "", ExitUsageError},
		{"empty stdin", &fakeInvoker{reply: "x"}, []string{"summarize"}, "   ", ExitUsageError},
		{"unknown flag", &fakeInvoker{reply: "x"}, []string{"summarize", "--bogus", "x"}, "", ExitUsageError},
		{
			"providers down",
			&fakeInvoker{err: &llm.ProviderUnavailableError{Attempts: []llm.Attempt{{Model: "ollama/llama3.1:8b", Class: llm.ClassTimeout, Reason: "timed out"}}}},
			[]string{"summarize", "x"}, "", ExitProviderError,
		},
		{"no model", &fakeInvoker{err: &router.NoModelAvailableError{}}, []string{"summarize", "x"}, "", ExitConfigError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRun(t)
			r.stdin = tt.stdin
			err := r.exec(tt.inv, tt.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := GetExitCode(err); got != tt.wantExit {
				t.Errorf("exit = %d, want %d (err %v)", got, tt.wantExit, err)
			}
		})
	}
}

// =============================================================================
// MODELS, HISTORY, CONFIG
// =============================================================================

func TestModelsCmd(t *testing.T) {
	r := newRun(t)
	if err := r.exec(&fakeInvoker{}, "--json", "models"); err != nil {
		t.Fatalf("models: %v", err)
	}
	var data modelsOutput
	decodeData(t, r.stdout.Bytes(), &data)
	if len(data.DocTypes) != 3 {
		t.Errorf("doc types = %v", data.DocTypes)
	}
	if data.Email {
		t.Error("email should be disabled by default")
	}
	if len(data.Text) == 0 {
		t.Error("text models should list the local defaults")
	}
}

func TestHistoryCmds(t *testing.T) {
	r := newRun(t)
	store, err := storage.Open(r.env["LLUMDOCS_HISTORY_DB"])
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	entries := []*storage.Entry{
		{CreatedAt: time.Now().Add(-72 * time.Hour), Task: "text", Provider: "ollama", Model: "ollama/llama3.1:8b", Attempt: 1, Success: true, LatencyMs: 900},
		{CreatedAt: time.Now(), Task: "text", Provider: "openai", Model: "gpt-4o-mini", Attempt: 2, Success: false, ErrorClass: "timeout", Error: "deadline"},
	}
	for _, e := range entries {
		if err := store.Add(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	store.Close()

	if err := r.exec(&fakeInvoker{}, "--json", "history", "list", "--failed"); err != nil {
		t.Fatalf("history list: %v", err)
	}
	var list struct {
		Entries []storage.Entry `json:"entries"`
	}
	decodeData(t, r.stdout.Bytes(), &list)
	if len(list.Entries) != 1 || list.Entries[0].Model != "gpt-4o-mini" {
		t.Errorf("entries = %+v", list.Entries)
	}

	r.stdout.Reset()
	if err := r.exec(&fakeInvoker{}, "history", "prune", "--older-than", "24h"); err != nil {
		t.Fatalf("history prune: %v", err)
	}
	if !strings.Contains(r.stdout.String(), "removed 1 entries") {
		t.Errorf("stdout = %q", r.stdout.String())
	}

	r.stdout.Reset()
	if err := r.exec(&fakeInvoker{}, "history", "stats"); err != nil {
		t.Fatalf("history stats: %v", err)
	}
	if !strings.Contains(r.stdout.String(), "gpt-4o-mini") || strings.Contains(r.stdout.String(), "llama3.1") {
		t.Errorf("stats = %q", r.stdout.String())
	}
}

func TestHistoryCmd_Disabled(t *testing.T) {
	r := newRun(t)
	if err := os.WriteFile(r.configPath(), []byte("[storage]\ndisabled = true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	err := r.exec(&fakeInvoker{}, "history", "list")
	if !errors.Is(err, errHistoryDisabled) {
		t.Errorf("err = %v, want errHistoryDisabled", err)
	}
}

func TestConfigCmds(t *testing.T) {
	r := newRun(t)

	if err := r.exec(&fakeInvoker{}, "config", "init"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(r.configPath()); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if err := r.exec(&fakeInvoker{}, "config", "init"); GetExitCode(err) != ExitUsageError {
		t.Errorf("second init err = %v", err)
	}

	r.stdout.Reset()
	if err := r.exec(&fakeInvoker{}, "config", "path"); err != nil {
		t.Fatalf("config path: %v", err)
	}
	if strings.TrimSpace(r.stdout.String()) != r.configPath() {
		t.Errorf("path = %q", r.stdout.String())
	}

	r.stdout.Reset()
	r.env["OPENAI_API_KEY"] = "sk-secret-value"
	if err := r.exec(&fakeInvoker{}, "config", "show"); err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(r.stdout.String(), "sk-secret-value") {
		t.Error("config show leaked the API key")
	}
	if !strings.Contains(r.stdout.String(), "REDACTED") {
		t.Errorf("config show = %q", r.stdout.String())
	}
}

func TestConfigPath_InvalidConfig(t *testing.T) {
	r := newRun(t)
	if err := os.WriteFile(r.configPath(), []byte("not_a_key = 1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := r.exec(&fakeInvoker{}, "config", "path"); err != nil {
		t.Errorf("config path should not load the config: %v", err)
	}
	if err := r.exec(&fakeInvoker{}, "models"); err == nil {
		t.Error("models should reject an invalid config")
	}
}

// =============================================================================
// ERRORS
// =============================================================================

func TestDisplayError(t *testing.T) {
	err := &llm.ProviderUnavailableError{Attempts: []llm.Attempt{
		{Model: "ollama/llama3.1:8b", Class: llm.ClassTimeout, Reason: "timed out"},
		{Model: "gpt-4o-mini", Class: llm.ClassTimeout, Reason: "deadline"},
	}}

	var text bytes.Buffer
	DisplayError(&text, "summarize", err, false)
	if !strings.Contains(text.String(), "ollama/llama3.1:8b") || !strings.Contains(text.String(), "gpt-4o-mini") {
		t.Errorf("text = %q", text.String())
	}

	var js bytes.Buffer
	DisplayError(&js, "summarize", err, true)
	var resp JSONResponse
	if err := json.Unmarshal(js.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Success || resp.ErrorType != "provider_error" || resp.Error == nil {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{&UsageError{Reason: "x"}, ExitUsageError},
		{&service.ValidationError{Field: "text"}, ExitUsageError},
		{&router.NoModelAvailableError{}, ExitConfigError},
		{&email.FeatureDisabledError{Feature: "x"}, ExitConfigError},
		{&llm.ProviderUnavailableError{}, ExitProviderError},
		{service.ErrNoKeywords, ExitOutputError},
		{context.DeadlineExceeded, ExitTimeoutError},
		{errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		if got := GetExitCode(tt.err); got != tt.want {
			t.Errorf("GetExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
