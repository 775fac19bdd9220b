// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package email classifies messages with three local classification
// pipelines: zero-shot routing, phishing detection and sentiment.
//
// Pipelines are served by an inference server speaking the Hugging Face
// inference protocol. They are loaded lazily, once per kind, and cached in
// a Registry. A load prefers the accelerator endpoint when enough GPU
// memory is free and falls back to the CPU endpoint when that fails.
package email
