// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package docextract

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/llumdocs/internal/coerce"
)

//go:embed doctypes/*.yaml
var doctypeFS embed.FS

// DocType is one extractable document type.
type DocType struct {
	Name         string        `yaml:"name" json:"name"`
	Title        string        `yaml:"title" json:"title"`
	TextLimit    int           `yaml:"text_limit" json:"text_limit,omitempty"`
	Redaction    string        `yaml:"redaction" json:"redaction"`
	SystemPrompt string        `yaml:"system_prompt" json:"-"`
	UserPrompt   string        `yaml:"user_prompt" json:"-"`
	Schema       coerce.Schema `yaml:"schema" json:"schema"`
}

// Catalogue maps type names to their declarations.
type Catalogue struct {
	types map[string]*DocType
}

// LoadCatalogue reads the embedded document types.
func LoadCatalogue() (*Catalogue, error) {
	entries, err := doctypeFS.ReadDir("doctypes")
	if err != nil {
		return nil, err
	}
	c := &Catalogue{types: make(map[string]*DocType, len(entries))}
	for _, e := range entries {
		data, err := doctypeFS.ReadFile(path.Join("doctypes", e.Name()))
		if err != nil {
			return nil, err
		}
		dt, err := parseDocType(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if _, dup := c.types[dt.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate document type %q", e.Name(), dt.Name)
		}
		c.types[dt.Name] = dt
	}
	return c, nil
}

func parseDocType(data []byte) (*DocType, error) {
	var dt DocType
	if err := yaml.Unmarshal(data, &dt); err != nil {
		return nil, err
	}
	if dt.Name == "" {
		return nil, fmt.Errorf("document type has no name")
	}
	if !strings.Contains(dt.UserPrompt, "{text}") {
		return nil, fmt.Errorf("%s: user_prompt lacks the {text} placeholder", dt.Name)
	}
	switch dt.Redaction {
	case "", redactDefault, redactPayroll:
	default:
		return nil, fmt.Errorf("%s: unknown redaction profile %q", dt.Name, dt.Redaction)
	}
	if err := dt.Schema.Check(); err != nil {
		return nil, err
	}
	return &dt, nil
}

// Names returns the type names, sorted.
func (c *Catalogue) Names() []string {
	names := make([]string, 0, len(c.types))
	for name := range c.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get looks up a type. The error lists the available types.
func (c *Catalogue) Get(name string) (*DocType, error) {
	dt, ok := c.types[name]
	if !ok {
		return nil, &UnknownDocTypeError{Name: name, Available: c.Names()}
	}
	return dt, nil
}

// UnknownDocTypeError is returned for a type missing from the catalogue.
type UnknownDocTypeError struct {
	Name      string
	Available []string
}

func (e *UnknownDocTypeError) Error() string {
	return fmt.Sprintf("Unknown doc_type: %s. Available types: %s", e.Name, strings.Join(e.Available, ", "))
}

// Prompt fills the user prompt with text and appends the expected fields.
func (dt *DocType) Prompt(text string) string {
	var b strings.Builder
	b.WriteString(strings.Replace(dt.UserPrompt, "{text}", text, 1))
	b.WriteString("\n\nJSON fields:\n")
	describeFields(&b, dt.Schema.Fields, "")
	return strings.TrimRight(b.String(), "\n")
}

func describeFields(b *strings.Builder, fields []coerce.Field, indent string) {
	for _, f := range fields {
		fmt.Fprintf(b, "%s- %s (%s", indent, f.Name, f.Type)
		if f.Required {
			b.WriteString(", required")
		}
		b.WriteString(")")
		if f.Description != "" {
			b.WriteString(": " + f.Description)
		}
		b.WriteString("\n")
		if len(f.Fields) > 0 {
			describeFields(b, f.Fields, indent+"  ")
		}
	}
}
