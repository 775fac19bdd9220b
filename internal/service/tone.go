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

// Tone selects the company voice of a generated email.
type Tone string

const (
	ToneSeriousImportant Tone = "serious_important"
	ToneCalmProfessional Tone = "calm_professional"
)

type toneProfile struct {
	description string
	constraints []string
	system      string // %s is the language name, twice
}

var sharedToneConstraints = []string{
	"Do not change the original meaning or introduce new information.",
	"Preserve critical data, quantities, and references.",
}

var toneProfiles = map[Tone]toneProfile{
	ToneSeriousImportant: {
		description: "serious and important",
		constraints: []string{
			"Use a formal, authoritative tone appropriate for important business communications.",
			"Maintain professionalism and gravitas throughout.",
			"Ensure the message conveys importance and seriousness.",
		},
		system: "You are an expert business writer specializing in formal, important company communications in %[1]s. " +
			"Generate complete, professional emails ready to send to customers with a serious, authoritative tone. " +
			"The email must be written entirely in %[1]s.",
	},
	ToneCalmProfessional: {
		description: "calm, professional but casual",
		constraints: []string{
			"Use a warm, approachable tone that remains professional.",
			"Balance professionalism with a friendly, calm demeanor.",
			"Avoid overly formal language while maintaining business appropriateness.",
		},
		system: "You are an expert business writer specializing in professional yet approachable company communications in %[1]s. " +
			"Generate complete, professional emails ready to send to customers with a calm, friendly tone. " +
			"The email must be written entirely in %[1]s.",
	},
}

// ToneRequest turns Text into a complete customer email. An empty
// Language means English.
type ToneRequest struct {
	Text     string
	Tone     Tone
	Language Language
	Model    string
}

// CompanyTone writes a ready-to-send email with subject, greeting, body,
// closing and signature placeholder in the requested tone and language.
func (s *Service) CompanyTone(ctx context.Context, req ToneRequest) (Output, error) {
	text, err := s.validateText("text", req.Text)
	if err != nil {
		return Output{}, err
	}
	lang := ParseLanguage(string(req.Language))
	if lang == "" {
		lang = LanguageEnglish
	}
	if !lang.Supported() {
		return Output{}, invalid("language", "Invalid language: %s. Must be one of ca, es, en", req.Language)
	}
	profile, ok := toneProfiles[Tone(strings.TrimSpace(string(req.Tone)))]
	if !ok {
		return Output{}, invalid("tone_type", "Invalid tone_type: %s. Must be one of '%s' or '%s'",
			req.Tone, ToneSeriousImportant, ToneCalmProfessional)
	}

	name := lang.Name()
	constraints := append(append([]string(nil), profile.constraints...), sharedToneConstraints...)

	var b strings.Builder
	fmt.Fprintf(&b, "Generate a complete, valid email ready to send to a customer based on the following content. "+
		"The email must be written entirely in %s and should have a %s tone suitable for company communications.\n\n",
		name, profile.description)
	b.WriteString("The email must include:\n")
	fmt.Fprintf(&b, "- A clear and appropriate subject line in %s\n", name)
	fmt.Fprintf(&b, "- A professional greeting appropriate for %s (e.g., 'Dear [Customer]' or 'Hello [Customer]')\n", name)
	b.WriteString("- A well-structured body that incorporates all the information from the input text\n")
	fmt.Fprintf(&b, "- A professional closing appropriate for %s (e.g., 'Best regards', 'Sincerely')\n", name)
	b.WriteString("- A signature placeholder (e.g., '[Your Name]' or '[Company Name]')\n\n")
	b.WriteString("Constraints:\n" + bulletList(constraints) + "\n\n")
	fmt.Fprintf(&b, "Language: %s\nInput content:\n%s\n\nGenerate the complete email in %s now:", name, text, name)

	return s.run(ctx, "company_tone", router.TaskText, req.Model, model.Conversation{
		model.System(fmt.Sprintf(profile.system, name)),
		model.User(b.String()),
	})
}
