// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jeranaias/llumdocs/internal/server"
	"github.com/jeranaias/llumdocs/internal/service"
)

// Build information, set with -ldflags.
var (
	Version   = server.Version
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// skipLoadAnnotation marks commands that run without a valid config.
const skipLoadAnnotation = "llumdocs/skip-load"

// Execute runs the command line and returns the process exit code.
func Execute() int {
	a := newApp()
	defer a.close()

	root := NewRootCmd(Version, a)
	cmd, err := root.ExecuteC()
	if err == nil {
		return ExitSuccess
	}
	if cmd == nil {
		cmd = root
	}
	jsonMode, _ := root.PersistentFlags().GetBool("json")
	w := root.ErrOrStderr()
	if jsonMode {
		w = root.OutOrStdout()
	}
	DisplayError(w, cmd.Name(), err, jsonMode)
	return GetExitCode(err)
}

// NewRootCmd builds the llumdocs command tree around a.
func NewRootCmd(version string, a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "llumdocs",
		Short: "Local-first document assistant backed by language models",
		Long: `llumdocs translates, summarizes and rewrites text, describes images,
extracts structured data from documents and analyzes emails. Local Ollama
models are preferred; a hosted OpenAI-compatible provider is the fallback.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, GitCommit, BuildDate),
		SilenceErrors: true,
		SilenceUsage:  true,
		Annotations:   map[string]string{skipLoadAnnotation: "true"},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipLoadAnnotation] != "" {
				return nil
			}
			level, _ := cmd.Flags().GetString("log-level")
			return a.load(level)
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Reason: err.Error()}
	})

	addPersistentFlags(root, a)
	addSubcommands(root, a)
	return root
}

func addPersistentFlags(cmd *cobra.Command, a *app) {
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default ~/.llumdocs/config.toml)")
	cmd.PersistentFlags().String("model", "", "Model hint, e.g. ollama/llama3.1:8b or gpt-4o-mini")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
}

func addSubcommands(root *cobra.Command, a *app) {
	root.AddCommand(
		NewTranslateCmd(a),
		NewSummarizeCmd(a),
		NewSimplifyCmd(a),
		NewTechnicalCmd(a),
		NewToneCmd(a),
		NewKeywordsCmd(a),
		NewDescribeCmd(a),
		NewExtractCmd(a),
		NewEmailCmd(a),
		NewModelsCmd(a),
		NewHistoryCmd(a),
		NewConfigCmd(a),
		NewServeCmd(a),
	)
}

// =============================================================================
// OUTPUT
// =============================================================================

func jsonMode(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func modelHint(cmd *cobra.Command) string {
	v, _ := cmd.Flags().GetString("model")
	return v
}

// emit writes data in the JSON envelope under --json and calls render
// otherwise.
func emit(cmd *cobra.Command, data any, render func(w io.Writer)) error {
	if jsonMode(cmd) {
		return NewJSONResponse(cmd.Name(), data).Write(cmd.OutOrStdout())
	}
	render(cmd.OutOrStdout())
	return nil
}

// emitText prints a generated text, rendered as markdown on a terminal,
// and names the model that wrote it on stderr.
func emitText(cmd *cobra.Command, field string, out service.Output) error {
	data := map[string]string{field: out.Text, "model": out.Model}
	return emit(cmd, data, func(w io.Writer) {
		text := out.Text
		if IsStdoutTTY() {
			text = renderMarkdown(text)
		}
		fmt.Fprintln(w, text)
		fmt.Fprintln(cmd.ErrOrStderr(), DimStyle.Render("model: "+out.Model))
	})
}
