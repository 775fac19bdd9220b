// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/jeranaias/llumdocs/internal/coerce"
	"github.com/jeranaias/llumdocs/internal/config"
	"github.com/jeranaias/llumdocs/internal/detect"
	"github.com/jeranaias/llumdocs/internal/docextract"
	"github.com/jeranaias/llumdocs/internal/email"
	"github.com/jeranaias/llumdocs/internal/llm"
	"github.com/jeranaias/llumdocs/internal/logging"
	"github.com/jeranaias/llumdocs/internal/router"
	"github.com/jeranaias/llumdocs/internal/server"
	"github.com/jeranaias/llumdocs/internal/service"
	"github.com/jeranaias/llumdocs/internal/storage"
	"github.com/jeranaias/llumdocs/internal/telemetry"
)

// app holds what the commands share: the loaded config, the logger and
// the optional history and metrics sinks.
type app struct {
	configPath string
	getenv     func(string) string

	cfg     *config.Config
	logger  *zap.Logger
	current *server.Backend

	history  *storage.Store
	recorder *storage.Recorder
	metrics  *telemetry.Metrics
	usage    *telemetry.UsageTracker
	prober   *detect.Prober

	// newInvoker replaces the llm client in tests.
	newInvoker func(cfg *config.Config, opts ...llm.ClientOption) service.Invoker
}

func newApp() *app {
	return &app{
		getenv: os.Getenv,
		logger: zap.NewNop(),
		newInvoker: func(cfg *config.Config, opts ...llm.ClientOption) service.Invoker {
			return llm.New(cfg, opts...)
		},
	}
}

// load reads the configuration and builds the logger. logLevel overrides
// the configured level when set.
func (a *app) load(logLevel string) error {
	cfg, err := config.Load(a.configPath, a.getenv)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return &UsageError{Reason: err.Error()}
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// resolvedConfigPath returns the file the config was (or would be) read
// from.
func (a *app) resolvedConfigPath() (string, error) {
	if a.configPath != "" {
		return a.configPath, nil
	}
	return config.DefaultPath()
}

// openHistory opens the history database unless storage is disabled. A
// failure is logged and history is skipped.
func (a *app) openHistory() {
	if a.cfg.Storage.Disabled || a.history != nil {
		return
	}
	path := a.cfg.Storage.HistoryDB
	if path == "" {
		p, err := storage.DefaultPath()
		if err != nil {
			a.logger.Warn("HISTORY_DISABLED", zap.Error(err))
			return
		}
		path = p
	}
	store, err := storage.Open(path)
	if err != nil {
		a.logger.Warn("HISTORY_DISABLED", zap.String("path", path), zap.Error(err))
		return
	}
	a.history = store
	a.recorder = storage.NewRecorder(store, a.logger)
}

// backend wires one configuration snapshot into the feature services.
func (a *app) backend(cfg *config.Config) (*server.Backend, error) {
	coercer := coerce.New(a.logger)
	clientOpts := []llm.ClientOption{llm.WithLogger(a.logger)}
	if a.metrics != nil {
		coercer.WithHook(a.metrics.ObserveCoercion)
		clientOpts = append(clientOpts, llm.WithObserver(a.metrics))
	}
	if a.usage != nil {
		clientOpts = append(clientOpts, llm.WithObserver(a.usage))
	}
	if a.recorder != nil {
		clientOpts = append(clientOpts, llm.WithObserver(a.recorder))
	}

	invoker := a.newInvoker(cfg, clientOpts...)
	features := service.New(invoker, cfg, a.logger, service.WithCoercer(coercer))

	extractor, err := docextract.NewExtractor(invoker,
		docextract.WithLogger(a.logger),
		docextract.WithCoercer(coercer),
		docextract.WithDefaultModel(cfg.Models.ExtractionModel))
	if err != nil {
		return nil, fmt.Errorf("document types: %w", err)
	}

	var registryOpts []email.RegistryOption
	if a.metrics != nil {
		registryOpts = append(registryOpts, email.WithLoadHook(a.metrics.ObservePipelineLoad))
	}
	var probe email.GPUProbe
	if a.prober != nil {
		probe = a.prober
	}
	registry := email.NewRegistryFromConfig(cfg, probe, a.logger, registryOpts...)
	emailSvc, err := email.NewService(cfg, registry, a.logger)
	if err != nil {
		return nil, fmt.Errorf("email: %w", err)
	}

	return &server.Backend{
		Config:    cfg,
		Resolver:  resolverOf(invoker, cfg),
		Features:  features,
		Extractor: extractor,
		Email:     emailSvc,
	}, nil
}

// services returns the backend for the loaded config, building it on
// first use. Calls made through it are recorded in the history.
func (a *app) services() (*server.Backend, error) {
	if a.current != nil {
		return a.current, nil
	}
	a.openHistory()
	b, err := a.backend(a.cfg)
	if err != nil {
		return nil, err
	}
	a.current = b
	return b, nil
}

// close flushes the history recorder and closes the database.
func (a *app) close() {
	if a.recorder != nil {
		a.recorder.Close()
		a.recorder = nil
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("HISTORY_CLOSE_FAILED", zap.Error(err))
		}
		a.history = nil
	}
	_ = a.logger.Sync()
}

// resolverOf returns the resolver the invoker walks, so /api/models and
// invocation agree on what is usable.
func resolverOf(invoker service.Invoker, cfg *config.Config) *router.Resolver {
	if c, ok := invoker.(interface{ Resolver() *router.Resolver }); ok {
		return c.Resolver()
	}
	return router.New(cfg)
}
