package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doi_transmissions_total",
		Help: "Record transmissions, labeled by outcome and failure kind",
	}, []string{"outcome", "kind"})

	transmissionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "doi_transmission_duration_seconds",
		Help:    "Time spent transmitting a single record",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30},
	})

	validationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doi_validation_total",
		Help: "AI pre-validation outcomes (valid, invalid, unavailable)",
	}, []string{"result"})

	reconcileFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "doi_reconcile_failures_total",
		Help: "Status updates that failed to persist after a transmission",
	})
)
