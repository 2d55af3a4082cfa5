package syshealth

import "time"

// Zone classifies host pressure.
type Zone string

const (
	ZoneCritical Zone = "critical"
	ZoneWarning  Zone = "warning"
	ZoneSafe     Zone = "safe"
)

// Thresholds mark where memory use and per-core load turn into pressure.
type Thresholds struct {
	MemoryWarningPercent  float64
	MemoryCriticalPercent float64
	// Load factors are 1-minute load average divided by CPU cores.
	LoadWarningFactor  float64
	LoadCriticalFactor float64
}

// DefaultThresholds returns the production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MemoryWarningPercent:  85,
		MemoryCriticalPercent: 95,
		LoadWarningFactor:     2,
		LoadCriticalFactor:    3,
	}
}

// Snapshot is one host sample. Fields a collector failed to read stay zero
// and are named in Errors.
type Snapshot struct {
	Zone          Zone              `json:"zone"`
	CPUCores      int               `json:"cpu_cores"`
	Load1         float64           `json:"load_1m"`
	MemoryPercent float64           `json:"memory_percent"`
	SampledAt     time.Time         `json:"sampled_at"`
	Errors        map[string]string `json:"errors,omitempty"`
}
