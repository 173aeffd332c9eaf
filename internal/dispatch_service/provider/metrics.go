package provider

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderRequestDurationHist tracks the duration of outbound provider calls.
	ProviderRequestDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dispatch",
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of requests to notification providers.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider_name"},
	)
)
