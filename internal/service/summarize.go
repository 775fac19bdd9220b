// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/llumdocs/internal/model"
	"github.com/jeranaias/llumdocs/internal/router"
)

// SummaryType selects the summary style.
type SummaryType string

const (
	SummaryShort     SummaryType = "short"
	SummaryDetailed  SummaryType = "detailed"
	SummaryExecutive SummaryType = "executive"
)

var summaryNotes = map[SummaryType]string{
	SummaryShort:     "Provide 3-5 concise sentences.",
	SummaryDetailed:  "Provide a thorough summary with logical sections or bullet points.",
	SummaryExecutive: "Provide a summary for decision-makers covering goals, key points, risks, and recommendations.",
}

// SummaryRequest summarizes Text. An empty Type means short.
type SummaryRequest struct {
	Text  string
	Type  SummaryType
	Model string
}

const summarySystemPrompt = "You summarize documents faithfully. " +
	"Focus on key points, avoid speculation, and do not add metadata or explanations outside the summary."

// Summarize writes a short, detailed or executive summary.
func (s *Service) Summarize(ctx context.Context, req SummaryRequest) (Output, error) {
	kind := SummaryType(strings.ToLower(strings.TrimSpace(string(req.Type))))
	if kind == "" {
		kind = SummaryShort
	}
	note, ok := summaryNotes[kind]
	if !ok {
		return Output{}, invalid("summary_type", "summary_type must be short, detailed, or executive.")
	}
	text, err := s.validateText("text", req.Text)
	if err != nil {
		return Output{}, err
	}

	user := fmt.Sprintf("Summary type: %s\n%s\nText to summarize:\n%s", kind, note, text)
	return s.run(ctx, "summarize", router.TaskText, req.Model, model.Conversation{
		model.System(summarySystemPrompt),
		model.User(user),
	})
}
