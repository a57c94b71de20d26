package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ResponseTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ReelTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_transitions_total",
			Help: "Reel status history rows appended, by status and origin",
		},
		[]string{"status", "origin"},
	)

	InvitesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invites_created_total",
			Help: "Invites created (duplicates excluded)",
		},
	)

	InvitesPromotedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invites_promoted_total",
			Help: "Invites promoted from pending to approved",
		},
	)

	ReferralPaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_payments_total",
			Help: "Referral payment attempts by outcome",
		},
		[]string{"outcome"},
	)

	StatsRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stats_refresh_duration_seconds",
			Help:    "Duration of monthly stats refresh runs",
			Buckets: prometheus.DefBuckets,
		},
	)
)
