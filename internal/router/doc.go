// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router resolves which model serves a request.
//
// Candidates are considered in a fixed order: the caller's hint, then the
// configured default for the task kind, then a built-in fallback list.
// A candidate is usable when its provider is enabled in the configuration:
//
//   - "ollama/<name>" ids need the local provider (not disabled)
//   - every other id needs the hosted provider (API key set, not local-only)
//
// Resolution is a pure function of an immutable *config.Config and the
// hint, so a Resolver can be shared freely between goroutines.
//
// # Usage
//
//	r := router.New(cfg)
//	rm, err := r.Resolve(router.TaskText, "")
//	if errors.Is(err, router.ErrNoModelAvailable) {
//	    // nothing configured
//	}
//
// A hint never silently falls through: if the hinted provider is disabled
// Resolve fails instead of substituting another model.
package router
