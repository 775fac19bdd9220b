// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/llumdocs/internal/docextract"
	"github.com/jeranaias/llumdocs/internal/email"
)

// =============================================================================
// EXTRACT
// =============================================================================

func NewExtractCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [text...]",
		Short: "Extract structured data from a document's text",
		Long: `Extract fields from OCR or pasted text of a known document type.
Available types: bank, deliverynote, payroll.`,
		Example: `  llumdocs extract --type deliverynote --file albaran.txt
  pdftotext nomina.pdf - | llumdocs extract --type payroll --redact`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			b, err := a.services()
			if err != nil {
				return err
			}
			docType, _ := cmd.Flags().GetString("type")
			var opts []docextract.ExtractOption
			if v, _ := cmd.Flags().GetBool("redact"); v {
				opts = append(opts, docextract.WithRedaction())
			}
			if v, _ := cmd.Flags().GetBool("redact-input"); v {
				opts = append(opts, docextract.WithInputRedaction())
			}
			out, err := b.Extractor.Extract(cmd.Context(), docType, text, modelHint(cmd), opts...)
			if err != nil {
				return err
			}
			return emit(cmd, out, func(w io.Writer) { renderExtraction(w, out) })
		},
	}
	cmd.Flags().StringP("type", "t", "", "Document type (bank|deliverynote|payroll)")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().Bool("redact", false, "Mask personal data in the summary")
	cmd.Flags().Bool("redact-input", false, "Mask personal data before the text is sent to a model")
	addInputFlags(cmd)
	return cmd
}

func renderExtraction(w io.Writer, out docextract.Extraction) {
	fmt.Fprintln(w, TitleStyle.Render(strings.ToUpper(out.DocType)))
	fmt.Fprintln(w, RenderField("Model", out.Model))
	fmt.Fprintln(w, RenderField("Strategy", out.Strategy))
	fmt.Fprintln(w, RenderSeparator(min(GetTerminalWidth(), 70)))

	if len(out.Legend) > 0 {
		fmt.Fprintln(w, SectionStyle.Render("Summary"))
		for _, line := range out.Legend {
			fmt.Fprintln(w, "  "+line)
		}
	}

	fmt.Fprintln(w, SectionStyle.Render("Data"))
	data, err := json.MarshalIndent(out.Record, "  ", "  ")
	if err == nil {
		fmt.Fprintln(w, "  "+string(data))
	}

	if len(out.Dropped) > 0 {
		fmt.Fprintln(w, WarningStyle.Render("Dropped keys: "+strings.Join(out.Dropped, ", ")))
	}
	for _, warn := range out.Warnings {
		fmt.Fprintln(w, WarningStyle.Render("[WARN] "+warn))
	}
}

// =============================================================================
// EMAIL
// =============================================================================

func NewEmailCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "email [text...]",
		Short: "Route an email and check it for phishing and sentiment",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			b, err := a.services()
			if err != nil {
				return err
			}
			if b.Email == nil || !b.Email.Enabled() {
				return &email.FeatureDisabledError{Feature: "Email intelligence"}
			}
			out, err := b.Email.Analyze(cmd.Context(), text)
			if err != nil {
				return err
			}
			return emit(cmd, out, func(w io.Writer) { renderInsights(w, out) })
		},
	}
	addInputFlags(cmd)
	return cmd
}

func renderInsights(w io.Writer, in email.Insights) {
	fmt.Fprintln(w, TitleStyle.Render("EMAIL ANALYSIS"))
	if len(in.Classification.Labels) > 0 {
		fmt.Fprintln(w, RenderField("Category", fmt.Sprintf("%s (%.2f)",
			in.Classification.Labels[0], in.Classification.Scores[0])))
	}
	phishing := fmt.Sprintf("%s (%.2f)", in.Phishing.Label, in.Phishing.Score)
	if in.Phishing.Label == "phishing" {
		phishing = ErrorStyle.Render(phishing)
	}
	fmt.Fprintln(w, RenderLabel("Phishing")+" "+phishing)
	fmt.Fprintln(w, RenderField("Sentiment", fmt.Sprintf("%s (%.2f)", in.Sentiment.Label, in.Sentiment.Score)))

	if len(in.Classification.Labels) > 1 {
		fmt.Fprintln(w, SectionStyle.Render("All categories"))
		for i, label := range in.Classification.Labels {
			fmt.Fprintf(w, "  %-20s %.2f\n", label, in.Classification.Scores[i])
		}
	}
}
