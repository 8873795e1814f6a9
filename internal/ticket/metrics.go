package ticket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricPurchases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voble",
			Subsystem: "ticket",
			Name:      "purchases_total",
			Help:      "Ticket purchases by outcome class",
		},
		[]string{"outcome"},
	)
	metricResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voble",
			Subsystem: "ticket",
			Name:      "reset_sends_total",
			Help:      "Post-payment session reset sends by outcome",
		},
		[]string{"outcome"},
	)
	metricRecoveryAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "voble",
		Subsystem: "ticket",
		Name:      "recovery_attempts_total",
		Help:      "Individual reset sends made by ticket recovery",
	})
	metricRecoveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voble",
			Subsystem: "ticket",
			Name:      "recoveries_total",
			Help:      "Ticket recoveries by outcome",
		},
		[]string{"outcome"},
	)
)
