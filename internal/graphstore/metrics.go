package graphstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "erm_graph_queries_total",
		Help: "Graph statements executed, by operation and outcome",
	}, []string{"op", "outcome"})

	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "erm_graph_query_duration_seconds",
		Help:    "Graph statement latency by operation",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	batchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "erm_graph_batch_statements",
		Help:    "Statements per all-or-nothing graph batch",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)
