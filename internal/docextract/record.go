// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package docextract

// Record is a normalized extraction result: every schema key is present,
// numbers are float64, lists of objects are []any of map[string]any.
type Record map[string]any

// String returns the string at key, or "".
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// StringOr returns the string at key, or def when absent or empty.
func (r Record) StringOr(key, def string) string {
	if s := r.String(key); s != "" {
		return s
	}
	return def
}

// Number returns the number at key.
func (r Record) Number(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// List returns the object list at key.
func (r Record) List(key string) []Record {
	arr, _ := r[key].([]any)
	out := make([]Record, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Record(m))
		}
	}
	return out
}
