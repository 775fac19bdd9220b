// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package coerce

import (
	"fmt"
	"strings"
)

// StrategyFailure records why one strategy rejected the output.
type StrategyFailure struct {
	Strategy string `json:"strategy"`
	Reason   string `json:"reason"`
}

// MalformedOutputError means no strategy could parse the output. Raw keeps
// the literal model text (a refusal, for example).
type MalformedOutputError struct {
	Raw      string
	Attempts []StrategyFailure
}

func (e *MalformedOutputError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Strategy + ": " + a.Reason
	}
	return fmt.Sprintf("model output could not be parsed (%s)", strings.Join(parts, "; "))
}

// FieldProblem is one schema violation.
type FieldProblem struct {
	Path     string `json:"path"`
	Expected string `json:"expected"`
	Got      string `json:"got"`
}

// SchemaError reports required fields whose values have the wrong type.
type SchemaError struct {
	Schema   string
	Problems []FieldProblem
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = fmt.Sprintf("%s: expected %s, got %s", p.Path, p.Expected, p.Got)
	}
	return fmt.Sprintf("output does not match schema %s: %s", e.Schema, strings.Join(parts, "; "))
}
