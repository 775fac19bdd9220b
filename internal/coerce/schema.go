// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package coerce

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FieldType is the declared type of a schema field.
type FieldType string

const (
	TypeString     FieldType = "string"
	TypeNumber     FieldType = "number"
	TypeInteger    FieldType = "integer"
	TypeCurrency   FieldType = "currency"
	TypeDate       FieldType = "date"
	TypeBool       FieldType = "boolean"
	TypeObject     FieldType = "object"
	TypeList       FieldType = "list"
	TypeStringList FieldType = "string_list"
)

// Field describes one key of a structured record. Object fields and list
// fields carry their nested fields.
type Field struct {
	Name        string    `yaml:"name" json:"name"`
	Type        FieldType `yaml:"type" json:"type"`
	Required    bool      `yaml:"required,omitempty" json:"required,omitempty"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Default     any       `yaml:"default,omitempty" json:"default,omitempty"`
	Fields      []Field   `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// Schema is an ordered set of fields.
type Schema struct {
	Name   string  `yaml:"name" json:"name"`
	Fields []Field `yaml:"fields" json:"fields"`
}

// Field returns the top-level field called name, or nil.
func (s *Schema) Field(name string) *Field {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

// Keys returns the top-level field names in declaration order.
func (s *Schema) Keys() []string {
	keys := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		keys[i] = f.Name
	}
	return keys
}

// Check reports declaration mistakes: unnamed or duplicate fields, unknown
// types, nested fields missing on object and list types.
func (s *Schema) Check() error {
	return checkFields(s.Name, s.Fields)
}

func checkFields(path string, fields []Field) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("%s: field without a name", path)
		}
		if seen[f.Name] {
			return fmt.Errorf("%s: duplicate field %q", path, f.Name)
		}
		seen[f.Name] = true

		switch f.Type {
		case TypeString, TypeNumber, TypeInteger, TypeCurrency, TypeDate, TypeBool, TypeStringList:
		case TypeObject, TypeList:
			if len(f.Fields) == 0 {
				return fmt.Errorf("%s.%s: %s field needs nested fields", path, f.Name, f.Type)
			}
			if err := checkFields(path+"."+f.Name, f.Fields); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%s.%s: unknown type %q", path, f.Name, f.Type)
		}
	}
	return nil
}

// =============================================================================
// NORMALIZATION
// =============================================================================

// Normalize validates obj against the schema. The returned map has exactly
// the schema's keys. Dropped holds the unknown keys that were removed, as
// dotted paths, sorted.
func (s *Schema) Normalize(obj map[string]any) (map[string]any, []string, error) {
	n := normalizer{}
	out := n.object(s.Name, s.Fields, obj)
	sort.Strings(n.dropped)
	if len(n.problems) > 0 {
		return nil, n.dropped, &SchemaError{Schema: s.Name, Problems: n.problems}
	}
	return out, n.dropped, nil
}

type normalizer struct {
	dropped  []string
	problems []FieldProblem
}

func (n *normalizer) object(path string, fields []Field, obj map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.Name] = true
		raw, present := obj[f.Name]
		if !present || raw == nil {
			out[f.Name] = f.Default
			continue
		}
		v, ok := n.value(path+"."+f.Name, f, raw)
		if !ok {
			if f.Required {
				n.problems = append(n.problems, FieldProblem{Path: path + "." + f.Name, Expected: string(f.Type), Got: typeName(raw)})
			}
			out[f.Name] = f.Default
			continue
		}
		out[f.Name] = v
	}
	for key := range obj {
		if !known[key] {
			n.dropped = append(n.dropped, path+"."+key)
		}
	}
	return out
}

func (n *normalizer) value(path string, f Field, raw any) (any, bool) {
	switch f.Type {
	case TypeString, TypeDate:
		return asString(raw)
	case TypeNumber, TypeCurrency:
		return asNumber(raw)
	case TypeInteger:
		num, ok := asNumber(raw)
		if !ok || num != float64(int64(num)) {
			return nil, false
		}
		return int64(num), true
	case TypeBool:
		return asBool(raw)
	case TypeObject:
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, false
		}
		return n.object(path, f.Fields, obj), true
	case TypeList:
		arr, ok := raw.([]any)
		if !ok {
			return nil, false
		}
		out := make([]any, 0, len(arr))
		for i, item := range arr {
			obj, ok := item.(map[string]any)
			if !ok {
				n.problems = append(n.problems, FieldProblem{Path: fmt.Sprintf("%s[%d]", path, i), Expected: "object", Got: typeName(item)})
				continue
			}
			out = append(out, n.object(fmt.Sprintf("%s[%d]", path, i), f.Fields, obj))
		}
		return out, true
	case TypeStringList:
		arr, ok := raw.([]any)
		if !ok {
			return nil, false
		}
		out := make([]any, 0, len(arr))
		for _, item := range arr {
			if s, ok := asString(item); ok {
				out = append(out, s)
			}
		}
		return out, true
	}
	return nil, false
}

func asString(raw any) (any, bool) {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return nil, false
}

func asBool(raw any) (any, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(strings.ToLower(v)))
		if err != nil {
			return nil, false
		}
		return b, true
	}
	return nil, false
}

func asNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		return ParseNumber(v)
	}
	return 0, false
}

var numberNoise = strings.NewReplacer(
	" ", "", "\u00a0", "", "\u202f", "",
	"€", "", "$", "", "£", "", "%", "",
	"EUR", "", "eur", "", "USD", "",
)

// ParseNumber reads numbers written with either decimal separator:
// "1.234,56", "1,234.56", "12,5" and "1 200 €" all parse.
// When both separators appear the last one is the decimal point. A lone
// comma is a decimal point; repeated identical separators are grouping.
func ParseNumber(s string) (float64, bool) {
	s = numberNoise.Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")
	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case commas == 1:
		s = strings.Replace(s, ",", ".", 1)
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
