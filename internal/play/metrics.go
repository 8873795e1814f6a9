package play

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricGuesses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voble",
			Subsystem: "play",
			Name:      "guesses_total",
			Help:      "Guess submissions by outcome",
		},
		[]string{"outcome"},
	)
	metricCompletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voble",
			Subsystem: "play",
			Name:      "completions_total",
			Help:      "Game commits by outcome",
		},
		[]string{"outcome"},
	)
)
