package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectAttempts records connect requests by outcome (pending|conflict|forbidden|error).
	ConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkup_connect_attempts_total",
			Help: "Total number of connection requests",
		},
		[]string{"outcome"},
	)

	// RelationshipTransitions counts state machine transitions by resulting status.
	RelationshipTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkup_relationship_transitions_total",
			Help: "Total number of relationship state transitions",
		},
		[]string{"status"},
	)

	// NotificationsDispatched counts notification fan-out by type and result (ok|error).
	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkup_notifications_dispatched_total",
			Help: "Total number of notifications dispatched",
		},
		[]string{"type", "result"},
	)

	// FeedSubscribers tracks currently connected change-feed subscribers.
	FeedSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "linkup_feed_subscribers",
			Help: "Number of connected realtime subscribers",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linkup_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
