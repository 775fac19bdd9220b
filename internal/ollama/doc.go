// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the local Ollama server.
//
// Every chat request is sent non-streaming with keep_alive set to 0, so the
// server unloads the model as soon as it has answered. llumdocs rotates
// between several local models and this bounds resident memory.
//
// # Key Types
//
//   - Client: HTTP client for /api/chat, /api/tags and the root health probe
//   - Message: chat message with optional base64 images
//   - ChatRequest, ChatResponse: /api/chat bodies
//   - ClientError: typed error carrying an ErrorType and HTTP status
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: "http://localhost:11434"})
//	resp, err := client.Chat(ctx, &ollama.ChatRequest{
//	    Model:    "llama3.1:8b",
//	    Messages: []ollama.Message{{Role: "user", Content: "Hello"}},
//	})
package ollama
