package repo

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacemeshos/go-peerdid/metrics"
)

const subsystem = "repo"

var (
	appendedDeltas = metrics.NewCounter(
		"appended_deltas",
		subsystem,
		"Number of deltas appended to document logs",
		[]string{"backend"},
	)
	resolveLatency = metrics.NewHistogramWithBuckets(
		"resolve_latency_seconds",
		subsystem,
		"Time to resolve a document",
		[]string{"source"},
		prometheus.ExponentialBuckets(0.00001, 2, 20),
	)
)
