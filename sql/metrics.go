package sql

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacemeshos/go-peerdid/metrics"
)

const namespace = "database"

var (
	queryDuration = metrics.NewHistogramWithBuckets(
		"query_duration_seconds",
		namespace,
		"Duration of delta store queries",
		[]string{"query"},
		prometheus.ExponentialBuckets(0.00001, 2, 20),
	)

	connWaitLatency = metrics.NewHistogramWithBuckets(
		"conn_wait_latency",
		namespace,
		"Time spent waiting for a pooled connection in seconds",
		[]string{},
		prometheus.ExponentialBuckets(0.00001, 2, 20),
	).WithLabelValues()
)
