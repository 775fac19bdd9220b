// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeranaias/llumdocs/internal/model"
	"github.com/jeranaias/llumdocs/internal/router"
)

// Keyword limits.
const (
	DefaultKeywords = 10
	MaxKeywords     = 50
)

// ErrNoKeywords is returned when the model's answer held no usable keyword.
var ErrNoKeywords = errors.New("no keywords returned by the model")

// KeywordsRequest extracts up to Max keywords (0 means DefaultKeywords).
type KeywordsRequest struct {
	Text  string
	Max   int
	Model string
}

// KeywordsOutput is the keyword list and the model that produced it.
type KeywordsOutput struct {
	Keywords []string `json:"keywords"`
	Model    string   `json:"model"`
}

const keywordsSystemPrompt = "You extract concise keywords from a document. " +
	"Return ONLY a JSON array of strings without duplicates. " +
	"Do not include explanations, numbering, or additional keys."

// Keywords extracts the most relevant keywords or short phrases.
func (s *Service) Keywords(ctx context.Context, req KeywordsRequest) (KeywordsOutput, error) {
	limit := req.Max
	if limit == 0 {
		limit = DefaultKeywords
	}
	if limit < 0 {
		return KeywordsOutput{}, invalid("max_keywords", "max_keywords must be a positive integer.")
	}
	if limit > MaxKeywords {
		return KeywordsOutput{}, invalid("max_keywords", "max_keywords must be <= %d.", MaxKeywords)
	}
	text, err := s.validateText("text", req.Text)
	if err != nil {
		return KeywordsOutput{}, err
	}

	user := fmt.Sprintf("Maximum keywords: %d\nList the most relevant keywords or short phrases.\nText:\n%s", limit, text)
	out, err := s.run(ctx, "keywords", router.TaskText, req.Model, model.Conversation{
		model.System(keywordsSystemPrompt),
		model.User(user),
	})
	if err != nil {
		return KeywordsOutput{}, err
	}

	keywords, err := s.coercer.StringList(out.Text, limit)
	if err != nil {
		return KeywordsOutput{}, fmt.Errorf("%w: %w", ErrNoKeywords, err)
	}
	return KeywordsOutput{Keywords: keywords, Model: out.Model}, nil
}
