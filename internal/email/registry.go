// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package email

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// GPUProbe reports whether the accelerator has room for another model.
// *detect.Prober implements it.
type GPUProbe interface {
	HasFreeGPUMemory(ctx context.Context, minFreeMB int) bool
}

// LoadEvent describes one pipeline load attempt.
type LoadEvent struct {
	Kind     PipelineKind
	Device   Device
	Duration time.Duration
	Err      error
}

// Registry caches one pipeline per kind. Concurrent first requests for a
// kind produce exactly one load. Loads hold only that kind's guard, so a
// slow load never blocks lookups or loads of other kinds.
type Registry struct {
	loader    Loader
	models    map[PipelineKind]string
	probe     GPUProbe
	minFreeMB int
	serialize bool
	onLoad    func(LoadEvent)
	logger    *zap.Logger

	mu        sync.RWMutex
	pipelines map[PipelineKind]Pipeline
	guards    map[PipelineKind]chan struct{}
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithGPUProbe enables accelerator placement. Without a probe every
// pipeline loads on CPU.
func WithGPUProbe(p GPUProbe, minFreeMB int) RegistryOption {
	return func(r *Registry) {
		r.probe = p
		r.minFreeMB = minFreeMB
	}
}

// WithSerializedInference makes each pipeline run one inference at a time.
func WithSerializedInference(on bool) RegistryOption {
	return func(r *Registry) { r.serialize = on }
}

// WithLoadHook registers a callback invoked after every load attempt.
func WithLoadHook(fn func(LoadEvent)) RegistryOption {
	return func(r *Registry) { r.onLoad = fn }
}

// WithRegistryLogger sets the logger.
func WithRegistryLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates a Registry loading models[kind] through loader.
func NewRegistry(loader Loader, models map[PipelineKind]string, opts ...RegistryOption) *Registry {
	r := &Registry{
		loader:    loader,
		models:    models,
		logger:    zap.NewNop(),
		pipelines: make(map[PipelineKind]Pipeline),
		guards:    make(map[PipelineKind]chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the pipeline for kind, loading it on first use.
func (r *Registry) Get(ctx context.Context, kind PipelineKind) (Pipeline, error) {
	if p, ok := r.cached(kind); ok {
		return p, nil
	}

	unlock, err := r.lockKind(ctx, kind)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if p, ok := r.cached(kind); ok {
		return p, nil
	}
	p, err := r.load(ctx, kind, r.preferredDevice(ctx))
	if err != nil {
		return nil, err
	}
	r.store(kind, p)
	return p, nil
}

// ReloadOnCPU replaces the pipeline for kind with a CPU instance. It is
// used when inference on the accelerator runs out of memory.
func (r *Registry) ReloadOnCPU(ctx context.Context, kind PipelineKind) (Pipeline, error) {
	unlock, err := r.lockKind(ctx, kind)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if p, ok := r.cached(kind); ok && p.Device() == DeviceCPU {
		return p, nil
	}
	r.mu.Lock()
	delete(r.pipelines, kind)
	r.mu.Unlock()

	p, err := r.loadOn(ctx, kind, DeviceCPU)
	if err != nil {
		return nil, err
	}
	r.store(kind, p)
	return p, nil
}

func (r *Registry) cached(kind PipelineKind) (Pipeline, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pipelines[kind]
	return p, ok
}

func (r *Registry) store(kind PipelineKind, p Pipeline) {
	r.mu.Lock()
	r.pipelines[kind] = p
	r.mu.Unlock()
}

// lockKind takes the load guard for kind. mu is held only to find or
// create the guard.
func (r *Registry) lockKind(ctx context.Context, kind PipelineKind) (func(), error) {
	r.mu.Lock()
	guard, ok := r.guards[kind]
	if !ok {
		guard = make(chan struct{}, 1)
		r.guards[kind] = guard
	}
	r.mu.Unlock()

	select {
	case guard <- struct{}{}:
		return func() { <-guard }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release drops the cached pipeline for kind. The next Get loads it again.
func (r *Registry) Release(kind PipelineKind) {
	r.mu.Lock()
	_, ok := r.pipelines[kind]
	delete(r.pipelines, kind)
	r.mu.Unlock()
	if ok {
		r.logger.Info("PIPELINE_RELEASED", zap.String("kind", string(kind)))
	}
}

// Loaded reports the device of every cached pipeline.
func (r *Registry) Loaded() map[PipelineKind]Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[PipelineKind]Device, len(r.pipelines))
	for kind, p := range r.pipelines {
		out[kind] = p.Device()
	}
	return out
}

func (r *Registry) preferredDevice(ctx context.Context) Device {
	if r.probe != nil && r.probe.HasFreeGPUMemory(ctx, r.minFreeMB) {
		return DeviceGPU
	}
	return DeviceCPU
}

// load tries device and, when that is the accelerator, falls back to CPU.
// Callers hold the guard for kind.
func (r *Registry) load(ctx context.Context, kind PipelineKind, device Device) (Pipeline, error) {
	p, err := r.loadOn(ctx, kind, device)
	if err == nil || device == DeviceCPU || ctx.Err() != nil {
		return p, err
	}
	r.logger.Warn("PIPELINE_GPU_FALLBACK", zap.String("kind", string(kind)), zap.Error(err))
	return r.loadOn(ctx, kind, DeviceCPU)
}

func (r *Registry) loadOn(ctx context.Context, kind PipelineKind, device Device) (Pipeline, error) {
	start := time.Now()
	p, err := r.loader.Load(ctx, kind, r.models[kind], device)
	if r.onLoad != nil {
		r.onLoad(LoadEvent{Kind: kind, Device: device, Duration: time.Since(start), Err: err})
	}
	if err != nil {
		return nil, &PipelineError{Kind: kind, Device: device, Op: "load", Err: err}
	}
	r.logger.Info("PIPELINE_LOADED",
		zap.String("kind", string(kind)),
		zap.String("model", r.models[kind]),
		zap.String("device", string(device)),
		zap.Duration("duration", time.Since(start)))
	if r.serialize {
		return &serialPipeline{Pipeline: p}, nil
	}
	return p, nil
}
