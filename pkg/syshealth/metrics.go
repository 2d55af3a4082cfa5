package syshealth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cpuLoadAvg = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "erm_host_cpu_load_1m",
		Help: "Host 1-minute load average at the last sample",
	})

	memoryUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "erm_host_memory_utilization_percent",
		Help: "Host memory utilization percentage at the last sample",
	})
)
