// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/llumdocs/internal/config"
)

func NewConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
	}
	cmd.AddCommand(newConfigShowCmd(a), newConfigPathCmd(a), newConfigInitCmd(a))
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if jsonMode(cmd) {
				return NewJSONResponse(cmd.Name(), map[string]any{
					"config":         a.cfg.String(),
					"ollama_enabled": a.cfg.OllamaEnabled(),
					"hosted_enabled": a.cfg.HostedEnabled(),
				}).Write(cmd.OutOrStdout())
			}
			fmt.Fprint(cmd.OutOrStdout(), a.cfg.String())
			return nil
		},
	}
}

func newConfigPathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the configuration file location",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipLoadAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.resolvedConfigPath()
			if err != nil {
				return err
			}
			_, statErr := os.Stat(path)
			exists := statErr == nil
			return emit(cmd, map[string]any{"path": path, "exists": exists}, func(w io.Writer) {
				fmt.Fprintln(w, path)
			})
		},
	}
}

func newConfigInitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a configuration file with the built-in defaults",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipLoadAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.resolvedConfigPath()
			if err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return usageErrorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			cfg := config.Default()
			cfg.SetDefaults()
			if err := config.SaveTOML(cfg, path); err != nil {
				return err
			}
			return emit(cmd, map[string]string{"path": path}, func(w io.Writer) {
				fmt.Fprintf(w, "%s wrote %s\n", SuccessStyle.Render("[OK]"), path)
			})
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}
