package schema

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var upsertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "erm_schema_upserts_total",
	Help: "Schema upserts by mode (checked, forced) and outcome",
}, []string{"mode", "outcome"})
