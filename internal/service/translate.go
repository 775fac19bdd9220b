// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package service

import (
	"context"
	"fmt"

	"github.com/jeranaias/llumdocs/internal/model"
	"github.com/jeranaias/llumdocs/internal/router"
)

// TranslateRequest translates Text from Source to Target.
type TranslateRequest struct {
	Text   string
	Source Language // "auto" or a supported language; empty means auto
	Target Language
	Model  string
}

const translateSystemPrompt = "You are a professional translator. " +
	"Translate the user's text while preserving the meaning, tone, and formatting. " +
	"If the source language is 'auto-detect', detect Catalan, Spanish, or English automatically. " +
	"Return only the translated text with no explanations."

// Translate translates between Catalan, Spanish and English.
func (s *Service) Translate(ctx context.Context, req TranslateRequest) (Output, error) {
	source := ParseLanguage(string(req.Source))
	if source == "" {
		source = LanguageAuto
	}
	target := ParseLanguage(string(req.Target))

	if source != LanguageAuto && !source.Supported() {
		return Output{}, invalid("source_lang", "source_lang must be one of auto, ca, es, en (received %q).", req.Source)
	}
	if !target.Supported() {
		return Output{}, invalid("target_lang", "target_lang must be one of ca, es, en (received %q).", req.Target)
	}
	if source == target {
		return Output{}, invalid("target_lang", "source_lang and target_lang must differ.")
	}
	text, err := s.validateText("text", req.Text)
	if err != nil {
		return Output{}, err
	}

	user := fmt.Sprintf("Source language: %s\nTarget language: %s\n"+
		"Constraints:\n"+
		"- Maintain punctuation and numeric values.\n"+
		"- Do not add explanations or notes.\n"+
		"- Keep markdown elements if present.\n"+
		"\n"+
		"Text to translate:\n%s", source.Name(), target.Name(), text)

	return s.run(ctx, "translate", router.TaskText, req.Model, model.Conversation{
		model.System(translateSystemPrompt),
		model.User(user),
	})
}
