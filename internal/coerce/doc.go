// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package coerce turns free-form model output into structured values.
//
// Models asked for JSON still wrap it in prose or markdown fences, so
// parsing runs an ordered strategy chain and reports which strategy won:
//
//	json-direct   the whole output is JSON
//	json-span     the first balanced {...} or [...] after stripping fences
//	lines         (StringList only) bullet and numbered list heuristics
//
// When a Schema is given the parsed object is normalized against it:
// unknown keys are dropped, missing keys become nil, numeric strings such
// as "1.234,56" become numbers.
package coerce
