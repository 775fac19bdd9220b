// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Image is an inline image payload. MIME is filled in by the invocation
// client after sniffing Data.
type Image struct {
	Data []byte `json:"-"`
	MIME string `json:"mime,omitempty"`
}

// Message is a single turn. Content is the text part; Image, when set,
// makes the message a mixed text and image message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Image   *Image `json:"image,omitempty"`
}

var (
	// ErrInvalidRole is returned for a role outside system/user/assistant.
	ErrInvalidRole = errors.New("invalid message role")

	// ErrEmptyContent is returned for a message with neither text nor image.
	ErrEmptyContent = errors.New("message content is empty")
)

// System builds a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User builds a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant builds an assistant message.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// UserWithImage builds a user message carrying prompt text and an image.
func UserWithImage(prompt string, data []byte) Message {
	return Message{Role: RoleUser, Content: prompt, Image: &Image{Data: data}}
}

// HasImage reports whether the message carries an image payload field.
// The payload itself may still be empty.
func (m Message) HasImage() bool {
	return m.Image != nil
}

// Validate checks the role and that there is some content.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, m.Role)
	}
	if strings.TrimSpace(m.Content) == "" && m.Image == nil {
		return ErrEmptyContent
	}
	return nil
}
