// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package service

import (
	"context"
	"strings"

	"github.com/jeranaias/llumdocs/internal/model"
	"github.com/jeranaias/llumdocs/internal/router"
)

// =============================================================================
// PLAIN LANGUAGE
// =============================================================================

// SimplifyRequest rewrites Text in plain language. Level is an optional
// reading level such as "general public" or "teenage".
type SimplifyRequest struct {
	Text  string
	Level string
	Model string
}

// Simplify rewrites text for broad audiences.
func (s *Service) Simplify(ctx context.Context, req SimplifyRequest) (Output, error) {
	text, err := s.validateText("text", req.Text)
	if err != nil {
		return Output{}, err
	}

	constraints := []string{
		"Use clear sentences and everyday vocabulary.",
		"Explain complex ideas with simple examples.",
		"Never change the meaning or omit critical facts.",
	}
	if level := strings.TrimSpace(req.Level); level != "" {
		constraints = append(constraints, "Adapt tone for "+level+" readers.")
	}

	user := "Rewrite the text into an accessible plain-language version.\n" +
		"Constraints:\n" + bulletList(constraints) + "\n\nText:\n" + text
	return s.run(ctx, "simplify", router.TaskText, req.Model, model.Conversation{
		model.System("You simplify texts for broad audiences. Produce only the simplified text without commentary."),
		model.User(user),
	})
}

// =============================================================================
// TECHNICAL
// =============================================================================

// TechnicalRequest rewrites Text in a technical register, optionally for a
// Domain and expertise Level.
type TechnicalRequest struct {
	Text   string
	Domain string
	Level  string
	Model  string
}

// Technical rewrites text in formal technical prose.
func (s *Service) Technical(ctx context.Context, req TechnicalRequest) (Output, error) {
	text, err := s.validateText("text", req.Text)
	if err != nil {
		return Output{}, err
	}

	constraints := []string{
		"Use formal, technical language.",
		"Do not change the original meaning or introduce new information.",
		"Preserve critical data, quantities, and references.",
	}
	if domain := strings.TrimSpace(req.Domain); domain != "" {
		constraints = append(constraints, "Align terminology with the "+domain+" domain.")
	}
	if level := strings.TrimSpace(req.Level); level != "" {
		constraints = append(constraints, "Write for a "+level+" expertise level.")
	}

	user := "Produce a more technical version of the text while keeping factual content intact.\n" +
		"Constraints:\n" + bulletList(constraints) + "\n\nText:\n" + text
	return s.run(ctx, "technical", router.TaskText, req.Model, model.Conversation{
		model.System("You are an expert technical writer. Produce precise and formal prose without explanations outside the rewritten text."),
		model.User(user),
	})
}
