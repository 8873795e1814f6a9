package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricHandshakes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "voble",
		Subsystem: "auth",
		Name:      "handshakes_total",
		Help:      "TEE challenge-response handshakes by outcome",
	},
	[]string{"outcome"},
)
