// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the llumdocs command line.
//
// Every feature of the HTTP API has a command (translate, summarize,
// simplify, technical, tone, keywords, describe, extract, email) reading
// text from arguments, --file or stdin. Results are plain text on stdout,
// rendered as markdown on a terminal, or the JSON envelope with --json.
// serve runs the API and reloads provider settings when the config file
// changes. Exit codes distinguish usage, configuration, provider and
// model-output failures.
package cli
