// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// =============================================================================
// SNAPSHOT STORE
// =============================================================================

// Store holds the current configuration snapshot. Readers call Current once
// per request and use that value throughout, so a reload never changes the
// configuration seen by an in-flight request.
type Store struct {
	cur atomic.Pointer[Config]
}

// NewStore returns a Store holding cfg.
func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.cur.Store(cfg)
	return s
}

// Current returns the active snapshot. The result must not be modified.
func (s *Store) Current() *Config {
	return s.cur.Load()
}

// Replace installs a new snapshot.
func (s *Store) Replace(cfg *Config) {
	s.cur.Store(cfg)
}

// =============================================================================
// FILE WATCHER
// =============================================================================

// Watcher reloads a config file into a Store when it changes on disk.
// Invalid files are logged and ignored; the previous snapshot stays active.
type Watcher struct {
	path     string
	store    *Store
	getenv   func(string) string
	logger   *zap.Logger
	debounce time.Duration
	onChange func(*Config)

	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher for path. onChange may be nil.
func NewWatcher(path string, store *Store, getenv func(string) string, logger *zap.Logger, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	// Editors replace files by rename, so watch the directory.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		path:     filepath.Clean(path),
		store:    store,
		getenv:   getenv,
		logger:   logger,
		debounce: 200 * time.Millisecond,
		onChange: onChange,
		watcher:  fw,
	}, nil
}

// Run processes file events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("CONFIG_WATCH_ERROR", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadFromPath(w.path, w.getenv)
	if err != nil {
		w.logger.Warn("CONFIG_RELOAD_REJECTED", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.store.Replace(cfg)
	w.logger.Info("CONFIG_RELOADED", zap.String("path", w.path))
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
