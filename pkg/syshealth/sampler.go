// Package syshealth samples host CPU load and memory for the debug endpoint.
package syshealth

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/emergent-company/erm/pkg/logger"
)

const sampleTimeout = 2 * time.Second

// Sampler reads host metrics on demand.
type Sampler struct {
	thresholds Thresholds
	log        *slog.Logger

	// collectors, swapped in tests
	getLoadAvg  func(context.Context) (*load.AvgStat, error)
	getMemStats func(context.Context) (*mem.VirtualMemoryStat, error)
	getCPUCores func() int
	now         func() time.Time
}

// NewSampler returns a Sampler using gopsutil collectors.
func NewSampler(t Thresholds, log *slog.Logger) *Sampler {
	return &Sampler{
		thresholds:  t,
		log:         log.With(logger.Scope("syshealth")),
		getLoadAvg:  load.AvgWithContext,
		getMemStats: mem.VirtualMemoryWithContext,
		getCPUCores: runtime.NumCPU,
		now:         time.Now,
	}
}

// Sample collects one Snapshot. Collector failures are logged and reported
// in the snapshot, never returned.
func (s *Sampler) Sample(ctx context.Context) Snapshot {
	ctx, cancel := context.WithTimeout(ctx, sampleTimeout)
	defer cancel()

	snap := Snapshot{CPUCores: s.getCPUCores(), SampledAt: s.now().UTC()}
	fail := func(name string, err error) {
		if snap.Errors == nil {
			snap.Errors = map[string]string{}
		}
		snap.Errors[name] = err.Error()
		s.log.Warn("host metric collection failed", slog.String("metric", name), logger.Error(err))
	}

	if l, err := s.getLoadAvg(ctx); err != nil {
		fail("load", err)
	} else {
		snap.Load1 = l.Load1
		cpuLoadAvg.Set(l.Load1)
	}
	if v, err := s.getMemStats(ctx); err != nil {
		fail("memory", err)
	} else {
		snap.MemoryPercent = v.UsedPercent
		memoryUtilization.Set(v.UsedPercent)
	}

	snap.Zone = s.zone(snap)
	return snap
}

func (s *Sampler) zone(snap Snapshot) Zone {
	cores := float64(snap.CPUCores)
	if cores < 1 {
		cores = 1
	}
	perCore := snap.Load1 / cores

	t := s.thresholds
	switch {
	case snap.MemoryPercent >= t.MemoryCriticalPercent || perCore >= t.LoadCriticalFactor:
		return ZoneCritical
	case snap.MemoryPercent >= t.MemoryWarningPercent || perCore >= t.LoadWarningFactor:
		return ZoneWarning
	}
	return ZoneSafe
}
