// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RateLimitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "secissues_ratelimit_decisions_total",
		Help: "Rate governor decisions by scope and outcome (allowed, limited, error).",
	}, []string{"scope", "outcome"})

	RateLimitLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "secissues_ratelimit_admit_seconds",
		Help:    "Latency of a single admit round trip to the rate limit store.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"scope"})

	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "secissues_auth_events_total",
		Help: "Authentication events by kind and result.",
	}, []string{"event", "result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "secissues_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "secissues_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "secissues_notifications_failed_total",
		Help: "Issue notifications that could not be delivered.",
	})
)
