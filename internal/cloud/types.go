// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"encoding/json"
	"errors"
	"strings"
)

// =============================================================================
// MESSAGES
// =============================================================================

// ContentPart is one element of a multi-part message.
type ContentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an http(s) or data: URL.
type ImageURL struct {
	URL string `json:"url"`
}

// Content is either plain text or a list of parts. It serializes as a JSON
// string when Parts is empty and as an array otherwise.
type Content struct {
	Text  string
	Parts []ContentPart
}

// MarshalJSON implements json.Marshaler.
func (c Content) MarshalJSON() ([]byte, error) {
	if len(c.Parts) > 0 {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts a string, an array of parts, or null.
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null":
		*c = Content{}
		return nil
	case strings.HasPrefix(trimmed, `"`):
		return json.Unmarshal(data, &c.Text)
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal(data, &c.Parts); err != nil {
			return err
		}
		var b strings.Builder
		for _, p := range c.Parts {
			if p.Type == "text" {
				b.WriteString(p.Text)
			}
		}
		c.Text = b.String()
		return nil
	}
	return errors.New("message content must be a string or an array of parts")
}

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    string  `json:"role"` // "user", "assistant", or "system"
	Content Content `json:"content"`
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{Role: "user", Content: Content{Text: content}}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) ChatMessage {
	return ChatMessage{Role: "system", Content: Content{Text: content}}
}

// NewImageMessage creates a user message with a text prompt followed by an
// image given as a URL (usually a data: URL).
func NewImageMessage(prompt, imageURL string) ChatMessage {
	return ChatMessage{
		Role: "user",
		Content: Content{Parts: []ContentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
		}},
	}
}

// =============================================================================
// REQUEST / RESPONSE
// =============================================================================

// ResponseFormat asks the API for a constrained output format.
type ResponseFormat struct {
	Type string `json:"type"` // "json_object"
}

// ChatRequest represents a request to the chat completions endpoint.
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Stream         bool            `json:"stream"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Seed           *int            `json:"seed,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// Usage reports token accounting.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Choice is one completion alternative.
type Choice struct {
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatResponse represents a response from the chat completions endpoint.
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// GetContent returns the content of the first choice, or empty string if none.
func (r *ChatResponse) GetContent() string {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.Content.Text
	}
	return ""
}

// ModelInfo represents an entry of GET /models.
type ModelInfo struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by"`
}

type modelsResponse struct {
	Data []ModelInfo `json:"data"`
}

// apiErrorResponse represents an error response from the API.
type apiErrorResponse struct {
	Error struct {
		Code    json.RawMessage `json:"code"`
		Type    string          `json:"type"`
		Message string          `json:"message"`
	} `json:"error"`
}
