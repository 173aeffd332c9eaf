package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchJobsReceivedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "nats_jobs_received_total",
			Help:      "Total NATS dispatch jobs received.",
		},
		[]string{"subject"},
	)

	dispatchProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "notifications_processed_total",
			Help:      "Total notifications processed.",
		},
		[]string{"channel", "status"}, // status: "sent", "failed", "rejected"
	)

	dispatchProcessingDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dispatch",
			Name:      "processing_duration_seconds",
			Help:      "Duration of notification dispatch processing.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	fallbackAttemptsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "fallback_attempts_total",
			Help:      "Total provider attempts made by the fallback executor.",
		},
		[]string{"provider_name", "result"}, // result: "success", "failure"
	)
)
