package rpc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRPCCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voble",
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "JSON-RPC calls by endpoint, method and outcome",
		},
		[]string{"endpoint", "method", "outcome"},
	)
	metricRPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "voble",
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "JSON-RPC call latency",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "method"},
	)
)

func observeCall(endpoint, method string, err error, d time.Duration) {
	outcome := "ok"
	switch {
	case err == nil:
	case IsNetworkError(err):
		outcome = "unavailable"
	default:
		outcome = "error"
	}
	metricRPCCalls.WithLabelValues(endpoint, method, outcome).Inc()
	metricRPCDuration.WithLabelValues(endpoint, method).Observe(d.Seconds())
}
