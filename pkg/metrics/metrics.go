package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by method (password|oauth|refresh) and result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authapp_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"method", "result"},
	)

	// RenewalTokens counts renewal credential lifecycle events (issued|revoked|purged).
	RenewalTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authapp_renewal_tokens_total",
			Help: "Renewal token lifecycle events",
		},
		[]string{"event"},
	)

	// OAuthCallbacks counts provider callbacks by provider and outcome.
	OAuthCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authapp_oauth_callbacks_total",
			Help: "OAuth authorization-code callbacks handled",
		},
		[]string{"provider", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authapp_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
