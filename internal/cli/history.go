// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jeranaias/llumdocs/internal/router"
	"github.com/jeranaias/llumdocs/internal/storage"
	"github.com/jeranaias/llumdocs/internal/util"
)

// =============================================================================
// MODELS
// =============================================================================

type modelsOutput struct {
	Text     []router.ModelOption `json:"text"`
	Vision   []router.ModelOption `json:"vision"`
	DocTypes []string             `json:"doc_types"`
	Email    bool                 `json:"email_enabled"`
}

func NewModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models usable with the current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.backend(a.cfg)
			if err != nil {
				return err
			}
			out := modelsOutput{
				Text:     b.Resolver.Available(router.TaskText),
				Vision:   b.Resolver.Available(router.TaskVision),
				DocTypes: b.Extractor.Catalogue().Names(),
				Email:    b.Email != nil && b.Email.Enabled(),
			}
			return emit(cmd, out, func(w io.Writer) { renderModels(w, out) })
		},
	}
}

func renderModels(w io.Writer, out modelsOutput) {
	section := func(title string, opts []router.ModelOption) {
		fmt.Fprintln(w, SectionStyle.Render(title))
		if len(opts) == 0 {
			fmt.Fprintln(w, "  "+WarningStyle.Render("none available"))
			return
		}
		for i, o := range opts {
			line := "  " + util.PadWidth(o.ID, 32) + " " + DimStyle.Render(o.Label)
			if i == 0 {
				line += " " + HighlightStyle.Render("(default)")
			}
			fmt.Fprintln(w, line)
		}
	}
	section("Text models", out.Text)
	section("Vision models", out.Vision)

	fmt.Fprintln(w, SectionStyle.Render("Document types"))
	for _, name := range out.DocTypes {
		fmt.Fprintln(w, "  "+name)
	}
	status := "disabled"
	if out.Email {
		status = "enabled"
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, RenderLabel("Email analysis")+" "+RenderStatus(status))
}

// =============================================================================
// HISTORY
// =============================================================================

var errHistoryDisabled = errors.New("history is disabled (storage.disabled or LLUMDOCS_HISTORY_DB)")

func NewHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded model invocations",
	}
	cmd.AddCommand(newHistoryListCmd(a), newHistoryStatsCmd(a), newHistoryPruneCmd(a))
	return cmd
}

// store opens the history database for a history subcommand.
func (a *app) store() (*storage.Store, error) {
	a.openHistory()
	if a.history == nil {
		return nil, errHistoryDisabled
	}
	return a.history, nil
}

func newHistoryListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent provider attempts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			sinceFlag, _ := cmd.Flags().GetString("since")
			since, err := storage.ParseSince(sinceFlag)
			if err != nil {
				return &UsageError{Reason: err.Error()}
			}
			f := storage.Filter{Since: since}
			f.Model, _ = cmd.Flags().GetString("model-id")
			f.Task, _ = cmd.Flags().GetString("task")
			f.Failed, _ = cmd.Flags().GetBool("failed")
			f.Limit, _ = cmd.Flags().GetInt("limit")

			entries, err := store.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			return emit(cmd, map[string]any{"entries": entries}, func(w io.Writer) {
				renderEntries(w, entries)
			})
		},
	}
	cmd.Flags().String("model-id", "", "Only this model")
	cmd.Flags().String("task", "", "Only this task (text|vision)")
	cmd.Flags().Bool("failed", false, "Only failed attempts")
	cmd.Flags().String("since", "", "Lower bound: a duration such as 24h, or RFC 3339")
	cmd.Flags().Int("limit", 50, "Maximum entries")
	return cmd
}

func renderEntries(w io.Writer, entries []storage.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, DimStyle.Render("no recorded invocations"))
		return
	}
	width := GetTerminalWidth()
	for _, e := range entries {
		status := SuccessStyle.Render("ok  ")
		detail := fmt.Sprintf("%dms", e.LatencyMs)
		if !e.Success {
			status = ErrorStyle.Render("fail")
			detail = e.ErrorClass + ": " + e.Error
		}
		line := fmt.Sprintf("%s %s %s %s ",
			util.PadWidth(humanize.Time(e.CreatedAt), 16),
			status,
			util.PadWidth(e.Task, 6),
			util.PadWidth(e.Model, 28))
		fmt.Fprintln(w, line+util.TruncateWidth(detail, max(width-60, 20)))
	}
}

func newHistoryStatsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show attempts, failures and latency per model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			sinceFlag, _ := cmd.Flags().GetString("since")
			since, err := storage.ParseSince(sinceFlag)
			if err != nil {
				return &UsageError{Reason: err.Error()}
			}
			stats, err := store.Stats(cmd.Context(), since)
			if err != nil {
				return err
			}
			return emit(cmd, map[string]any{"models": stats}, func(w io.Writer) {
				if len(stats) == 0 {
					fmt.Fprintln(w, DimStyle.Render("no recorded invocations"))
					return
				}
				fmt.Fprintln(w, LabelStyle.Render(util.PadWidth("MODEL", 32))+
					"  ATTEMPTS  FAILURES  AVG LATENCY")
				for _, s := range stats {
					fmt.Fprintf(w, "%s  %8s  %8s  %9.0fms\n",
						util.PadWidth(util.TruncateWidth(s.Model, 32), 32),
						humanize.Comma(int64(s.Attempts)),
						humanize.Comma(int64(s.Failures)),
						s.AvgLatencyMs)
				}
			})
		},
	}
	cmd.Flags().String("since", "", "Lower bound: a duration such as 24h, or RFC 3339")
	return cmd
}

func newHistoryPruneCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old history entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			age, _ := cmd.Flags().GetDuration("older-than")
			if age <= 0 {
				return usageErrorf("--older-than must be positive")
			}
			removed, err := store.Prune(cmd.Context(), time.Now().Add(-age))
			if err != nil {
				return err
			}
			return emit(cmd, map[string]int64{"removed": removed}, func(w io.Writer) {
				fmt.Fprintf(w, "%s removed %s entries older than %s\n",
					SuccessStyle.Render("[OK]"), humanize.Comma(removed), age)
			})
		},
	}
	cmd.Flags().Duration("older-than", 30*24*time.Hour, "Remove entries older than this")
	return cmd
}
