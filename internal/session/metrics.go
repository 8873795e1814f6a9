package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "voble",
	Subsystem: "session",
	Name:      "fetch_network_failures_total",
	Help:      "TEE session reads that failed at the transport level",
})
