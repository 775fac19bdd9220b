// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package coerce

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Strategy names reported in Result and StrategyFailure.
const (
	StrategyDirect = "json-direct"
	StrategySpan   = "json-span"
	StrategyLines  = "lines"
)

// Result is a parsed object and the strategy that produced it.
type Result struct {
	Value    map[string]any
	Strategy string
	// Dropped lists keys removed because the schema does not know them.
	Dropped []string
}

// Outcome reports one coercion: the operation ("object" or "list"), the
// strategy that succeeded, or the error when none did.
type Outcome struct {
	Op       string
	Strategy string
	Err      error
}

// Coercer parses model output. The zero value is not usable; call New.
type Coercer struct {
	logger *zap.Logger
	hook   func(Outcome)
}

// New creates a Coercer. A nil logger discards warnings.
func New(logger *zap.Logger) *Coercer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coercer{logger: logger}
}

// WithHook registers fn to receive every Outcome. It returns c.
func (c *Coercer) WithHook(fn func(Outcome)) *Coercer {
	c.hook = fn
	return c
}

func (c *Coercer) report(op, strategy string, err error) {
	if c.hook != nil {
		c.hook(Outcome{Op: op, Strategy: strategy, Err: err})
	}
}

var defaultCoercer = New(nil)

// JSON parses raw into an object and, with a non-nil schema, normalizes it.
func JSON(raw string, schema *Schema) (map[string]any, error) {
	res, err := defaultCoercer.Parse(raw, schema)
	return res.Value, err
}

// StringList parses raw into at most max strings.
func StringList(raw string, max int) ([]string, error) {
	return defaultCoercer.StringList(raw, max)
}

// Parse runs the object strategy chain over raw.
func (c *Coercer) Parse(raw string, schema *Schema) (Result, error) {
	res, err := c.parse(raw, schema)
	c.report("object", res.Strategy, err)
	return res, err
}

func (c *Coercer) parse(raw string, schema *Schema) (Result, error) {
	var failures []StrategyFailure

	obj, err := parseObject(raw)
	strategy := StrategyDirect
	if err != nil {
		failures = append(failures, StrategyFailure{Strategy: StrategyDirect, Reason: err.Error()})
		var span string
		span, err = extractSpan(raw, '{')
		if err == nil {
			obj, err = parseObject(span)
		}
		if err != nil {
			failures = append(failures, StrategyFailure{Strategy: StrategySpan, Reason: err.Error()})
			return Result{}, &MalformedOutputError{Raw: raw, Attempts: failures}
		}
		strategy = StrategySpan
	}

	obj = unwrapSingle(obj, schema)
	if schema == nil {
		return Result{Value: obj, Strategy: strategy}, nil
	}

	value, dropped, err := schema.Normalize(obj)
	for _, key := range dropped {
		c.logger.Warn("COERCE_DROPPED_KEY",
			zap.String("schema", schema.Name),
			zap.String("key", key))
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Value: value, Strategy: strategy, Dropped: dropped}, nil
}

func parseObject(s string) (map[string]any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty output")
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %s", typeName(v))
	}
	return obj, nil
}

// unwrapSingle replaces {"report": {...}} with the inner object unless the
// single key is itself a schema field.
func unwrapSingle(obj map[string]any, schema *Schema) map[string]any {
	if len(obj) != 1 {
		return obj
	}
	for key, v := range obj {
		inner, ok := v.(map[string]any)
		if !ok {
			return obj
		}
		if schema != nil && schema.Field(key) != nil {
			return obj
		}
		return inner
	}
	return obj
}

// =============================================================================
// SPAN EXTRACTION
// =============================================================================

var (
	fenceRe         = regexp.MustCompile("```[A-Za-z]*[ \t]*\n?")
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
)

// extractSpan strips markdown fences and returns the first balanced span
// opened by open ('{' or '[') that is valid JSON. Brackets inside string
// literals are ignored.
func extractSpan(raw string, open byte) (string, error) {
	cleaned := fenceRe.ReplaceAllString(raw, "")
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}

	found := false
	for start := strings.IndexByte(cleaned, open); start >= 0; {
		found = true
		if end := matchBracket(cleaned, start, open, closer); end > 0 {
			span := cleaned[start : end+1]
			if json.Valid([]byte(span)) {
				return span, nil
			}
			if fixed := trailingCommaRe.ReplaceAllString(span, "$1"); json.Valid([]byte(fixed)) {
				return fixed, nil
			}
		}
		next := strings.IndexByte(cleaned[start+1:], open)
		if next < 0 {
			break
		}
		start += next + 1
	}
	if !found {
		return "", fmt.Errorf("no %q found in output", string(open))
	}
	return "", errors.New("no balanced JSON span found")
}

// matchBracket returns the index of the bracket closing s[start], or -1.
func matchBracket(s string, start int, open, closer byte) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64, json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
