// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jeranaias/llumdocs/internal/llm"
	"github.com/jeranaias/llumdocs/internal/model"
	"github.com/jeranaias/llumdocs/internal/router"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// =============================================================================
// STORE TESTS
// =============================================================================

func TestStore_AddAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	entries := []Entry{
		{CreatedAt: base, Task: "text", Provider: "ollama", Model: "ollama/llama3.1:8b", Attempt: 1, ErrorClass: "connection", Error: "refused", LatencyMs: 3},
		{CreatedAt: base.Add(time.Second), Task: "text", Provider: "openai", Model: "gpt-4o-mini", Attempt: 2, Success: true, LatencyMs: 420, PromptTokens: 12, CompletionTokens: 30},
		{CreatedAt: base.Add(2 * time.Second), Task: "vision", Provider: "openai", Model: "gpt-4o", Attempt: 1, Success: true, LatencyMs: 900},
	}
	for i := range entries {
		if err := store.Add(ctx, &entries[i]); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if entries[i].ID == "" {
			t.Error("Add should assign an ID")
		}
	}

	all, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List returned %d entries, want 3", len(all))
	}
	if all[0].Model != "gpt-4o" {
		t.Errorf("newest entry = %q, want gpt-4o", all[0].Model)
	}
	if all[2].Error != "refused" || all[2].ErrorClass != "connection" {
		t.Errorf("failed entry lost its error: %+v", all[2])
	}
	if all[1].CompletionTokens != 30 || !all[1].Success {
		t.Errorf("entry round trip mismatch: %+v", all[1])
	}

	failed, err := store.List(ctx, Filter{Failed: true})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Provider != "ollama" {
		t.Errorf("Failed filter = %+v", failed)
	}

	vision, _ := store.List(ctx, Filter{Task: "vision"})
	if len(vision) != 1 {
		t.Errorf("Task filter returned %d, want 1", len(vision))
	}

	page, _ := store.List(ctx, Filter{Limit: 1, Offset: 1})
	if len(page) != 1 || page[0].Model != "gpt-4o-mini" {
		t.Errorf("paged list = %+v", page)
	}
}

func TestStore_StatsAndPrune(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	adds := []Entry{
		{CreatedAt: old, Task: "text", Provider: "openai", Model: "gpt-4o", Attempt: 1, Success: true, LatencyMs: 100},
		{Task: "text", Provider: "openai", Model: "gpt-4o-mini", Attempt: 1, Success: true, LatencyMs: 100},
		{Task: "text", Provider: "openai", Model: "gpt-4o-mini", Attempt: 1, LatencyMs: 300, ErrorClass: "timeout"},
	}
	for i := range adds {
		if err := store.Add(ctx, &adds[i]); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	stats, err := store.Stats(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("Stats returned %d models, want 1", len(stats))
	}
	if s := stats[0]; s.Model != "gpt-4o-mini" || s.Attempts != 2 || s.Failures != 1 || s.AvgLatencyMs != 200 {
		t.Errorf("Stats = %+v", s)
	}

	n, err := store.Prune(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Prune removed %d, want 1", n)
	}
}

func TestStore_ReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Add(context.Background(), &Entry{Task: "text", Provider: "openai", Model: "gpt-4o", Attempt: 1, Success: true}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	store.Close()

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()
	got, err := store.List(context.Background(), Filter{})
	if err != nil || len(got) != 1 {
		t.Errorf("after reopen: %d entries, err %v", len(got), err)
	}
}

// =============================================================================
// RECORDER TESTS
// =============================================================================

func TestRecorder_WritesEvents(t *testing.T) {
	store := openTestStore(t)
	rec := NewRecorder(store, nil)

	rec.Observe(llm.Event{
		Kind:     router.TaskText,
		Model:    "ollama/llama3.1:8b",
		Provider: model.ProviderOllama,
		Attempt:  1,
		Class:    llm.ClassConnection,
		Err:      errors.New("connection refused"),
		Duration: 5 * time.Millisecond,
	})
	rec.Observe(llm.Event{
		Kind:     router.TaskText,
		Model:    "gpt-4o-mini",
		Provider: model.ProviderOpenAI,
		Attempt:  2,
		Success:  true,
		Duration: 250 * time.Millisecond,
	})
	rec.Close()
	rec.Close()

	// Events after Close are ignored.
	rec.Observe(llm.Event{Model: "late"})

	got, err := store.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("recorded %d entries, want 2", len(got))
	}
	var failed Entry
	for _, e := range got {
		if !e.Success {
			failed = e
		}
	}
	if failed.Error != "connection refused" || failed.ErrorClass != "connection" || failed.Task != "text" {
		t.Errorf("failed attempt recorded as %+v", failed)
	}
	if rec.Dropped() != 0 {
		t.Errorf("Dropped = %d, want 0", rec.Dropped())
	}
}

func TestParseSince(t *testing.T) {
	if ts, err := ParseSince(""); err != nil || !ts.IsZero() {
		t.Errorf("ParseSince(\"\") = %v, %v", ts, err)
	}
	if ts, err := ParseSince("2h"); err != nil || time.Since(ts) < 2*time.Hour-time.Minute {
		t.Errorf("ParseSince(2h) = %v, %v", ts, err)
	}
	if ts, err := ParseSince("2025-01-02T03:04:05Z"); err != nil || ts.Year() != 2025 {
		t.Errorf("ParseSince(RFC3339) = %v, %v", ts, err)
	}
	if _, err := ParseSince("yesterday"); err == nil {
		t.Error("ParseSince(yesterday) should fail")
	}
}
