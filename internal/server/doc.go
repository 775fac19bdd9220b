// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the LlumDocs features over HTTP.
//
// # Endpoints
//
//   - GET  /health                   - Provider status and host snapshot
//   - GET  /metrics                  - Prometheus metrics
//   - GET  /api/models               - Usable text and vision models
//   - POST /api/translate            - Translate between ca, es and en
//   - POST /api/documents/summarize  - Short, detailed or executive summary
//   - POST /api/documents/extract    - Structured extraction for a document type
//   - POST /api/text/plain           - Plain-language rewrite
//   - POST /api/text/technical       - Technical rewrite
//   - POST /api/text/company-tone    - Customer email in a company tone
//   - POST /api/text/keywords        - Keyword list
//   - POST /api/images/describe      - Image description (multipart)
//   - POST /api/email/analyze        - Routing, phishing and sentiment
//   - GET  /api/history              - Recorded provider attempts
//   - GET  /api/history/stats        - Attempts aggregated per model
//   - GET  /api/usage                - Token usage and cost since start
//
// Errors use one envelope:
//
//	{"error": {"message": "...", "type": "invalid_request_error", "code": 400}}
//
// Invalid input is 400, missing providers and disabled features are 503,
// and provider or parsing failures are 502.
//
// # Middleware
//
// Recovery, request ids, security headers, CORS, request logging, per-IP
// rate limiting and a body size cap, in that order.
//
// # Reloading
//
// Handlers read the feature services from a Backend that SetBackend can
// swap at any time, so a config reload never mixes two configurations in
// one request.
package server
