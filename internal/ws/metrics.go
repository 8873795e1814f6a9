package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "voble",
		Subsystem: "ws",
		Name:      "connections",
		Help:      "Open state stream connections",
	})
	metricDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "voble",
		Subsystem: "ws",
		Name:      "dropped_messages_total",
		Help:      "Messages dropped for slow clients",
	})
)
