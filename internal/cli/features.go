// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jeranaias/llumdocs/internal/service"
)

// textRunner reads the input text, builds the backend and hands both to
// run.
func textRunner(a *app, run func(cmd *cobra.Command, svc *service.Service, text string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		b, err := a.services()
		if err != nil {
			return err
		}
		return run(cmd, b.Features, text)
	}
}

// =============================================================================
// TRANSLATE
// =============================================================================

func NewTranslateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate [text...]",
		Short: "Translate between Catalan, Spanish and English",
		Example: `  llumdocs translate --to en "Bon dia a tothom"
  cat carta.txt | llumdocs translate --from es --to ca`,
		RunE: textRunner(a, func(cmd *cobra.Command, svc *service.Service, text string) error {
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			out, err := svc.Translate(cmd.Context(), service.TranslateRequest{
				Text:   text,
				Source: service.Language(from),
				Target: service.Language(to),
				Model:  modelHint(cmd),
			})
			if err != nil {
				return err
			}
			return emitText(cmd, "translated_text", out)
		}),
	}
	cmd.Flags().String("from", "auto", "Source language (auto|ca|es|en)")
	cmd.Flags().String("to", "", "Target language (ca|es|en)")
	_ = cmd.MarkFlagRequired("to")
	addInputFlags(cmd)
	return cmd
}

// =============================================================================
// SUMMARIZE
// =============================================================================

func NewSummarizeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize [text...]",
		Short: "Summarize a document",
		RunE: textRunner(a, func(cmd *cobra.Command, svc *service.Service, text string) error {
			kind, _ := cmd.Flags().GetString("type")
			out, err := svc.Summarize(cmd.Context(), service.SummaryRequest{
				Text:  text,
				Type:  service.SummaryType(kind),
				Model: modelHint(cmd),
			})
			if err != nil {
				return err
			}
			return emitText(cmd, "summary", out)
		}),
	}
	cmd.Flags().String("type", string(service.SummaryShort), "Summary type (short|detailed|executive)")
	addInputFlags(cmd)
	return cmd
}

// =============================================================================
// REWRITES
// =============================================================================

func NewSimplifyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simplify [text...]",
		Short: "Rewrite text in plain language",
		RunE: textRunner(a, func(cmd *cobra.Command, svc *service.Service, text string) error {
			level, _ := cmd.Flags().GetString("level")
			out, err := svc.Simplify(cmd.Context(), service.SimplifyRequest{
				Text:  text,
				Level: level,
				Model: modelHint(cmd),
			})
			if err != nil {
				return err
			}
			return emitText(cmd, "plain_text", out)
		}),
	}
	cmd.Flags().String("level", "", "Target reading level, e.g. \"general public\"")
	addInputFlags(cmd)
	return cmd
}

func NewTechnicalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "technical [text...]",
		Short: "Rewrite text in formal technical prose",
		RunE: textRunner(a, func(cmd *cobra.Command, svc *service.Service, text string) error {
			domain, _ := cmd.Flags().GetString("domain")
			level, _ := cmd.Flags().GetString("level")
			out, err := svc.Technical(cmd.Context(), service.TechnicalRequest{
				Text:   text,
				Domain: domain,
				Level:  level,
				Model:  modelHint(cmd),
			})
			if err != nil {
				return err
			}
			return emitText(cmd, "technical_text", out)
		}),
	}
	cmd.Flags().String("domain", "", "Subject domain, e.g. \"software\" or \"legal\"")
	cmd.Flags().String("level", "", "Target audience level, e.g. \"expert\"")
	addInputFlags(cmd)
	return cmd
}

func NewToneCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tone [text...]",
		Short: "Turn notes into a customer email in the company tone",
		RunE: textRunner(a, func(cmd *cobra.Command, svc *service.Service, text string) error {
			tone, _ := cmd.Flags().GetString("tone")
			lang, _ := cmd.Flags().GetString("lang")
			out, err := svc.CompanyTone(cmd.Context(), service.ToneRequest{
				Text:     text,
				Tone:     service.Tone(tone),
				Language: service.Language(lang),
				Model:    modelHint(cmd),
			})
			if err != nil {
				return err
			}
			return emitText(cmd, "email", out)
		}),
	}
	cmd.Flags().String("tone", string(service.ToneCalmProfessional), "Tone (serious_important|calm_professional)")
	cmd.Flags().String("lang", string(service.LanguageEnglish), "Email language (ca|es|en)")
	addInputFlags(cmd)
	return cmd
}

// =============================================================================
// KEYWORDS
// =============================================================================

func NewKeywordsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywords [text...]",
		Short: "Extract keywords from a document",
		RunE: textRunner(a, func(cmd *cobra.Command, svc *service.Service, text string) error {
			limit, _ := cmd.Flags().GetInt("max")
			out, err := svc.Keywords(cmd.Context(), service.KeywordsRequest{
				Text:  text,
				Max:   limit,
				Model: modelHint(cmd),
			})
			if err != nil {
				return err
			}
			return emit(cmd, out, func(w io.Writer) {
				for _, k := range out.Keywords {
					fmt.Fprintln(w, k)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), DimStyle.Render("model: "+out.Model))
			})
		}),
	}
	cmd.Flags().Int("max", service.DefaultKeywords, fmt.Sprintf("Maximum keywords (1-%d)", service.MaxKeywords))
	addInputFlags(cmd)
	return cmd
}

// =============================================================================
// DESCRIBE IMAGE
// =============================================================================

func NewDescribeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe <image>",
		Short: "Describe an image with a vision model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readImage(args[0], a.cfg.Limits.MaxImageBytes)
			if err != nil {
				return err
			}
			b, err := a.services()
			if err != nil {
				return err
			}
			detail, _ := cmd.Flags().GetString("detail")
			size, _ := cmd.Flags().GetInt("max-size")
			out, err := b.Features.DescribeImage(cmd.Context(), service.ImageRequest{
				Image:   data,
				Detail:  service.DetailLevel(detail),
				MaxSize: size,
				Model:   modelHint(cmd),
			})
			if err != nil {
				return err
			}
			return emitText(cmd, "description", out)
		},
	}
	cmd.Flags().String("detail", string(service.DetailShort), "Description detail (short|detailed)")
	cmd.Flags().Int("max-size", service.DefaultImageMaxSize,
		fmt.Sprintf("Longest side sent to the model, in pixels (max %d)", service.MaxImageMaxSize))
	return cmd
}
