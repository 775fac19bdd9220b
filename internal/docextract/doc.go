// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package docextract pulls structured fields out of document text.
//
// Each document type (delivery note, bank statement, payroll) is declared
// in an embedded YAML file: prompts, text limit, redaction profile and the
// field schema the model's JSON is normalized against. Extraction always
// runs on a hosted model in JSON mode with temperature 0 and a fixed seed,
// so repeated runs over the same text agree.
package docextract
