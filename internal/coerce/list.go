// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package coerce

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	errNoItems   = errors.New("no items")
	bulletRe     = regexp.MustCompile(`^\s*(?:[-*•]+|\d+[.)])\s*`)
	listFenceRe  = regexp.MustCompile("^```")
	bracketRe    = regexp.MustCompile(`(?s)\[(.*?)\]`)
	quoteTrimSet = "\"'`"
)

// StringList parses raw as a list of short strings: a JSON array first,
// then bullet or numbered lines. Items are trimmed, empty items dropped and
// duplicates removed case-insensitively. max <= 0 means no cap.
func (c *Coercer) StringList(raw string, max int) ([]string, error) {
	items, strategy, err := c.stringList(raw, max)
	c.report("list", strategy, err)
	return items, err
}

func (c *Coercer) stringList(raw string, max int) ([]string, string, error) {
	var failures []StrategyFailure

	items, err := parseArray(raw)
	if err == nil {
		if out := dedupe(items, max); len(out) > 0 {
			return out, StrategyDirect, nil
		}
		err = errNoItems
	}
	failures = append(failures, StrategyFailure{Strategy: StrategyDirect, Reason: err.Error()})

	span, err := extractSpan(raw, '[')
	if err == nil {
		items, err = parseArray(span)
	}
	if err == nil {
		if out := dedupe(items, max); len(out) > 0 {
			return out, StrategySpan, nil
		}
		err = errNoItems
	}
	failures = append(failures, StrategyFailure{Strategy: StrategySpan, Reason: err.Error()})

	if out := dedupe(splitLines(raw), max); len(out) > 0 {
		return out, StrategyLines, nil
	}
	failures = append(failures, StrategyFailure{Strategy: StrategyLines, Reason: errNoItems.Error()})

	return nil, "", &MalformedOutputError{Raw: raw, Attempts: failures}
}

// parseArray accepts a JSON array of scalars, or an object whose only
// value is such an array ({"keywords": [...]}).
func parseArray(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty output")
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	if obj, ok := v.(map[string]any); ok && len(obj) == 1 {
		for _, inner := range obj {
			v = inner
		}
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON array, got %s", typeName(v))
	}

	out := make([]string, 0, len(arr))
	for _, item := range arr {
		switch x := item.(type) {
		case string:
			out = append(out, x)
		case float64:
			out = append(out, strconv.FormatFloat(x, 'f', -1, 64))
		case bool:
			out = append(out, strconv.FormatBool(x))
		}
	}
	return out, nil
}

// splitLines salvages list items from non-JSON output. A bracketed list
// with unquoted items is split on commas; otherwise every line is an item
// once bullets and numbering are stripped. Header lines ending in ':' are
// skipped.
func splitLines(raw string) []string {
	if m := bracketRe.FindStringSubmatch(raw); m != nil && strings.TrimSpace(m[1]) != "" {
		return strings.Split(m[1], ",")
	}
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || listFenceRe.MatchString(line) || strings.HasSuffix(line, ":") {
			continue
		}
		line = bulletRe.ReplaceAllString(line, "")
		if strings.Trim(line, "[]{},") == "" {
			continue
		}
		// A single comma-separated line is a list too.
		if !strings.Contains(raw, "\n") && strings.Contains(line, ",") {
			out = append(out, strings.Split(line, ",")...)
			continue
		}
		out = append(out, line)
	}
	return out
}

func dedupe(items []string, max int) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, item := range items {
		item = strings.Trim(strings.TrimSpace(item), quoteTrimSet)
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
