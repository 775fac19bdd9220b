// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the request-scoped data shared by the resolver,
// the invocation client and the feature services.
//
// # Key Types
//
//   - Message: one role-tagged turn, optionally carrying an inline image
//   - Conversation: ordered messages forming one model request
//   - Provider: the local (Ollama) or hosted (OpenAI-compatible) backend
//   - Capability: whether a model handles text or vision tasks
//   - ModelInfo: display metadata for the models llumdocs knows about
//
// # Usage
//
//	conv := model.Conversation{
//	    model.System("You are a professional translator."),
//	    model.User("Bon dia!"),
//	}
//	if err := conv.Validate(); err != nil {
//	    return err
//	}
package model
