// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage keeps the invocation history in SQLite.
//
// Every provider attempt made by the invocation client is recorded with
// its task, provider, model, latency and outcome. The history backs the
// /api/history endpoint and the "llumdocs history" command.
//
// # Usage
//
//	store, err := storage.Open(path)
//	rec := storage.NewRecorder(store, logger)
//	client := llm.New(cfg, llm.WithObserver(rec))
//	defer rec.Close()
//
//	entries, err := store.List(ctx, storage.Filter{Limit: 20})
package storage
