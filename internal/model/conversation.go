// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
)

// ErrEmptyConversation is returned when a conversation has no messages.
var ErrEmptyConversation = errors.New("conversation has no messages")

// Conversation is the ordered message list sent in one model request.
type Conversation []Message

// Validate checks that the conversation is non-empty and every message is
// well formed.
func (c Conversation) Validate() error {
	if len(c) == 0 {
		return ErrEmptyConversation
	}
	for i, m := range c {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}

// ImageMessages returns the indexes of messages that carry an image.
func (c Conversation) ImageMessages() []int {
	var idx []int
	for i, m := range c {
		if m.HasImage() {
			idx = append(idx, i)
		}
	}
	return idx
}

// Clone returns a copy that shares image bytes but not message structs.
func (c Conversation) Clone() Conversation {
	out := make(Conversation, len(c))
	for i, m := range c {
		if m.Image != nil {
			img := *m.Image
			m.Image = &img
		}
		out[i] = m
	}
	return out
}
