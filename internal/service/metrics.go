package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failure reasons used as metric labels.
const (
	reasonValidation = "validation"
	reasonExhausted  = "exhausted"
	reasonExternal   = "external"
	reasonCanceled   = "canceled"
	reasonConflict   = "conflict"
	reasonInternal   = "internal"
)

var (
	codesGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bulkpromo_codes_generated_total",
		Help: "Total number of discount codes committed",
	})

	generationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkpromo_generation_failures_total",
			Help: "Total number of failed generate requests by reason",
		},
		[]string{"reason"},
	)

	validationResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkpromo_validation_results_total",
			Help: "Total number of validation runs by outcome",
		},
		[]string{"valid"},
	)

	commitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bulkpromo_commit_duration_seconds",
			Help:    "Duration of batch commit calls in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bulkpromo_active_sessions",
		Help: "Number of open generation sessions",
	})
)
