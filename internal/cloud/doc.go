// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the client for hosted OpenAI-compatible chat
// completion APIs.
//
// The client performs exactly one HTTP request per call. Deciding whether a
// failure is worth trying on another model belongs to the caller, which can
// use IsRetryable on the returned error.
//
// # Key Types
//
//   - Client: HTTP client for /chat/completions and /models
//   - ChatMessage: message whose content is plain text or text+image parts
//   - ChatRequest, ChatResponse: /chat/completions bodies
//   - APIError: non-2xx response with status and provider error code
//
// # Usage
//
//	client := cloud.NewClient(apiKey).WithBaseURL("https://api.openai.com/v1")
//	resp, err := client.Chat(ctx, &cloud.ChatRequest{
//	    Model:    "gpt-4o-mini",
//	    Messages: []cloud.ChatMessage{cloud.NewUserMessage("Hello")},
//	})
//
// API keys are never logged; log lines carry a short SHA-256 fingerprint.
package cloud
