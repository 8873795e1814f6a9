package game

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricCoordinators = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "voble",
	Subsystem: "service",
	Name:      "coordinators",
	Help:      "Live lifecycle coordinators",
})
