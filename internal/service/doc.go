// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package service implements the text and image features on top of the
// invocation client: translation, summaries, plain-language and technical
// rewrites, company-tone emails, keyword extraction and image description.
//
// Every feature validates its input, builds a two-message conversation
// (system instructions, then the user's content) and hands it to an
// Invoker. Nothing here talks to a provider directly.
package service
