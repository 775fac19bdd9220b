// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/llumdocs/internal/config"
	"github.com/jeranaias/llumdocs/internal/detect"
	"github.com/jeranaias/llumdocs/internal/server"
	"github.com/jeranaias/llumdocs/internal/telemetry"
)

const shutdownTimeout = 15 * time.Second

func NewServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API. The configuration file is watched and provider
settings are applied to new requests without a restart. Listen address,
CORS origins and request limits need a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
				a.cfg.Server.Listen = listen
			}
			watch, _ := cmd.Flags().GetBool("watch")
			return a.serve(cmd, watch)
		},
	}
	cmd.Flags().String("listen", "", "Listen address (default from config, 127.0.0.1:7860)")
	cmd.Flags().Bool("watch", true, "Reload provider settings when the config file changes")
	return cmd
}

func (a *app) serve(cmd *cobra.Command, watch bool) error {
	if !a.cfg.OllamaEnabled() && !a.cfg.HostedEnabled() {
		a.logger.Warn("NO_PROVIDER_CONFIGURED",
			zap.String("hint", "enable Ollama or set OPENAI_API_KEY"))
	}

	a.metrics = telemetry.NewMetrics(nil)
	a.usage = telemetry.NewUsageTracker()
	a.prober = detect.NewProber()
	a.openHistory()

	backend, err := a.backend(a.cfg)
	if err != nil {
		return err
	}
	opts := []server.Option{
		server.WithLogger(a.logger),
		server.WithMetrics(a.metrics),
		server.WithUsage(a.usage),
		server.WithProber(a.prober),
	}
	if a.history != nil {
		opts = append(opts, server.WithHistory(a.history))
	}
	srv, err := server.New(backend, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watch {
		a.watchConfig(ctx, srv)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	if !jsonMode(cmd) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s llumdocs %s listening on http://%s\n",
			SuccessStyle.Render("[OK]"), Version, srv.Addr())
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// watchConfig rebuilds the backend whenever the config file changes. A
// missing config directory leaves reloading off.
func (a *app) watchConfig(ctx context.Context, srv *server.Server) {
	path, err := a.resolvedConfigPath()
	if err != nil {
		a.logger.Warn("CONFIG_WATCH_DISABLED", zap.Error(err))
		return
	}
	w, err := config.NewWatcher(path, config.NewStore(a.cfg), a.getenv, a.logger, func(cfg *config.Config) {
		b, err := a.backend(cfg)
		if err != nil {
			a.logger.Warn("CONFIG_RELOAD_REJECTED", zap.Error(err))
			return
		}
		srv.SetBackend(b)
	})
	if err != nil {
		a.logger.Warn("CONFIG_WATCH_DISABLED", zap.String("path", path), zap.Error(err))
		return
	}
	go w.Run(ctx)
}
