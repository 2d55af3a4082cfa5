package syshealth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
)

func fakeSampler(load1, memPct float64) *Sampler {
	s := NewSampler(DefaultThresholds(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.getCPUCores = func() int { return 4 }
	s.getLoadAvg = func(context.Context) (*load.AvgStat, error) { return &load.AvgStat{Load1: load1}, nil }
	s.getMemStats = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{UsedPercent: memPct}, nil
	}
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func TestSample_Zones(t *testing.T) {
	tests := []struct {
		name   string
		load1  float64
		memPct float64
		want   Zone
	}{
		{"idle", 1, 40, ZoneSafe},
		{"busy cpu", 8, 40, ZoneWarning},
		{"overloaded cpu", 12, 40, ZoneCritical},
		{"memory pressure", 1, 90, ZoneWarning},
		{"memory exhausted", 1, 97, ZoneCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := fakeSampler(tt.load1, tt.memPct).Sample(context.Background())
			assert.Equal(t, tt.want, snap.Zone)
			assert.Equal(t, 4, snap.CPUCores)
			assert.Empty(t, snap.Errors)
		})
	}
}

func TestSample_CollectorFailure(t *testing.T) {
	s := fakeSampler(1, 50)
	s.getMemStats = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return nil, errors.New("no /proc")
	}

	snap := s.Sample(context.Background())
	assert.Equal(t, "no /proc", snap.Errors["memory"])
	assert.Zero(t, snap.MemoryPercent)
	assert.Equal(t, 1.0, snap.Load1)
	assert.Equal(t, ZoneSafe, snap.Zone)
}
