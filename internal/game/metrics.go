package game

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voble",
			Subsystem: "game",
			Name:      "phase_transitions_total",
			Help:      "Accepted phase transitions by target phase",
		},
		[]string{"to"},
	)
	metricRejectedTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voble",
			Subsystem: "game",
			Name:      "rejected_transitions_total",
			Help:      "Phase transitions refused by the transition table",
		},
		[]string{"from", "to"},
	)
	metricStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voble",
			Subsystem: "game",
			Name:      "starts_total",
			Help:      "StartGame runs by outcome",
		},
		[]string{"outcome"},
	)
	metricSyncAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "voble",
		Subsystem: "game",
		Name:      "sync_attempts",
		Help:      "Polls needed before the TEE session was confirmed; attempts+1 means exhausted",
		Buckets:   prometheus.LinearBuckets(1, 1, 13),
	})
)
