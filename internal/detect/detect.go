// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package detect probes the host for accelerator memory and general
// resource figures.
//
// The email pipelines use it to choose between GPU and CPU placement, and
// the /health endpoint reports the host snapshot.
package detect

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// probeTimeout bounds a single nvidia-smi invocation.
const probeTimeout = 5 * time.Second

// ErrNoGPU is returned when no supported accelerator answers the probe.
var ErrNoGPU = errors.New("no GPU detected")

// =============================================================================
// TYPES
// =============================================================================

// GPUMemory is one accelerator's memory picture in MiB.
type GPUMemory struct {
	Name    string `json:"name"`
	TotalMB int    `json:"total_mb"`
	UsedMB  int    `json:"used_mb"`
	FreeMB  int    `json:"free_mb"`
}

func (g *GPUMemory) String() string {
	return fmt.Sprintf("%s (%d/%d MiB free)", g.Name, g.FreeMB, g.TotalMB)
}

// HostStats is a point-in-time snapshot of the machine.
type HostStats struct {
	Hostname      string     `json:"hostname"`
	OS            string     `json:"os"`
	Platform      string     `json:"platform"`
	UptimeSeconds uint64     `json:"uptime_seconds"`
	LogicalCPUs   int        `json:"logical_cpus"`
	MemoryTotalMB uint64     `json:"memory_total_mb"`
	MemoryAvailMB uint64     `json:"memory_available_mb"`
	MemoryUsedPct float64    `json:"memory_used_percent"`
	GPU           *GPUMemory `json:"gpu,omitempty"`
}

// Runner executes an external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// =============================================================================
// PROBER
// =============================================================================

// Prober runs the hardware probes. The zero value is not usable; call
// NewProber.
type Prober struct {
	run   Runner
	paths []string
}

// NewProber returns a prober that shells out to nvidia-smi.
func NewProber() *Prober {
	return &Prober{run: execRunner, paths: nvidiaSmiPaths()}
}

// NewProberWithRunner returns a prober using run instead of os/exec.
func NewProberWithRunner(run Runner) *Prober {
	return &Prober{run: run, paths: nvidiaSmiPaths()}
}

func nvidiaSmiPaths() []string {
	if runtime.GOOS == "windows" {
		return []string{
			"nvidia-smi",
			`C:\Windows\System32\nvidia-smi.exe`,
			`C:\Program Files\NVIDIA Corporation\NVSMI\nvidia-smi.exe`,
		}
	}
	return []string{"nvidia-smi"}
}

// GPUMemory queries the first NVIDIA GPU. It returns ErrNoGPU when
// nvidia-smi is missing or prints nothing usable.
func (p *Prober) GPUMemory(ctx context.Context) (*GPUMemory, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var output []byte
	var err error
	for _, path := range p.paths {
		output, err = p.run(ctx, path,
			"--query-gpu=name,memory.total,memory.used,memory.free",
			"--format=csv,noheader,nounits")
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if err != nil || len(output) == 0 {
		return nil, ErrNoGPU
	}
	return parseNvidiaMemory(string(output))
}

func parseNvidiaMemory(out string) (*GPUMemory, error) {
	line := strings.TrimSpace(strings.Split(strings.TrimSpace(out), "\n")[0])
	parts := strings.Split(line, ",")
	if len(parts) < 4 {
		return nil, ErrNoGPU
	}

	nums := make([]int, 3)
	for i := range nums {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i+1]))
		if err != nil {
			return nil, fmt.Errorf("%w: unparsable nvidia-smi field %q", ErrNoGPU, parts[i+1])
		}
		nums[i] = n
	}

	return &GPUMemory{
		Name:    "NVIDIA " + strings.TrimSpace(parts[0]),
		TotalMB: nums[0],
		UsedMB:  nums[1],
		FreeMB:  nums[2],
	}, nil
}

// HasFreeGPUMemory reports whether a GPU with at least minFreeMB free MiB is
// present. Any probe failure counts as "no".
func (p *Prober) HasFreeGPUMemory(ctx context.Context, minFreeMB int) bool {
	g, err := p.GPUMemory(ctx)
	if err != nil {
		return false
	}
	return g.FreeMB >= minFreeMB
}

// Host collects a HostStats snapshot. GPU is nil when no GPU is found;
// other probe failures are returned.
func (p *Prober) Host(ctx context.Context) (*HostStats, error) {
	stats := &HostStats{}

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("host info: %w", err)
	}
	stats.Hostname = info.Hostname
	stats.OS = info.OS
	stats.Platform = info.Platform
	stats.UptimeSeconds = info.Uptime

	cpus, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("cpu count: %w", err)
	}
	stats.LogicalCPUs = cpus

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}
	stats.MemoryTotalMB = vm.Total >> 20
	stats.MemoryAvailMB = vm.Available >> 20
	stats.MemoryUsedPct = vm.UsedPercent

	if g, err := p.GPUMemory(ctx); err == nil {
		stats.GPU = g
	}
	return stats, nil
}
