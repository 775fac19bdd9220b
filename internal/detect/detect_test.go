// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeRunner(out string, err error) Runner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(out), err
	}
}

func TestGPUMemory_Parse(t *testing.T) {
	p := NewProberWithRunner(fakeRunner("RTX 4090, 24564, 1200, 23364\n", nil))

	g, err := p.GPUMemory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "NVIDIA RTX 4090", g.Name)
	assert.Equal(t, 24564, g.TotalMB)
	assert.Equal(t, 1200, g.UsedMB)
	assert.Equal(t, 23364, g.FreeMB)
	assert.Contains(t, g.String(), "23364/24564")
}

func TestGPUMemory_MultiGPUUsesFirst(t *testing.T) {
	p := NewProberWithRunner(fakeRunner("A100, 81920, 0, 81920\nT4, 15360, 0, 15360\n", nil))
	g, err := p.GPUMemory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "NVIDIA A100", g.Name)
}

func TestGPUMemory_Missing(t *testing.T) {
	p := NewProberWithRunner(fakeRunner("", errors.New("executable file not found")))
	_, err := p.GPUMemory(context.Background())
	assert.ErrorIs(t, err, ErrNoGPU)
}

func TestGPUMemory_Garbage(t *testing.T) {
	p := NewProberWithRunner(fakeRunner("No devices were found", nil))
	_, err := p.GPUMemory(context.Background())
	assert.ErrorIs(t, err, ErrNoGPU)

	p = NewProberWithRunner(fakeRunner("T4, lots, 0, 1", nil))
	_, err = p.GPUMemory(context.Background())
	assert.ErrorIs(t, err, ErrNoGPU)
}

func TestHasFreeGPUMemory(t *testing.T) {
	tests := []struct {
		name string
		out  string
		err  error
		min  int
		want bool
	}{
		{"enough", "T4, 15360, 15000, 360", nil, 100, true},
		{"exact", "T4, 15360, 15260, 100", nil, 100, true},
		{"too little", "T4, 15360, 15300, 60", nil, 100, false},
		{"no gpu", "", errors.New("missing"), 100, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProberWithRunner(fakeRunner(tt.out, tt.err))
			assert.Equal(t, tt.want, p.HasFreeGPUMemory(context.Background(), tt.min))
		})
	}
}

func TestHost_ReportsMemory(t *testing.T) {
	p := NewProberWithRunner(fakeRunner("", errors.New("missing")))
	stats, err := p.Host(context.Background())
	require.NoError(t, err)
	assert.Greater(t, stats.LogicalCPUs, 0)
	assert.Greater(t, stats.MemoryTotalMB, uint64(0))
	assert.Nil(t, stats.GPU)
}
