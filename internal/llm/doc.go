// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llm invokes chat models with provider fallback.
//
// A Client asks the router for the usable candidates of a task kind and
// makes exactly one attempt per candidate, in order. Each provider adapter
// returns a ProviderResponse: either a TextResponse or an ErrorResponse
// tagged with an ErrorClass. Transient classes move on to the next
// candidate; anything else stops the walk.
//
//	client := llm.New(cfg, llm.WithLogger(logger))
//	res, err := client.Invoke(ctx, model.Conversation{
//	    model.System("You summarize documents faithfully."),
//	    model.User(text),
//	}, router.TaskText, "")
//
// Local models are always unloaded after a call (keep_alive 0). Images are
// only accepted for vision tasks, one per conversation.
package llm
