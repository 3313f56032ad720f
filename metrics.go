package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oncallbot_webhook_events_total",
		Help: "Webhook events accepted, by event type.",
	}, []string{"event_type"})

	webhookRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oncallbot_webhook_rejected_total",
		Help: "Webhook deliveries rejected or ignored, by reason.",
	}, []string{"reason"})

	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oncallbot_checks_total",
		Help: "Conflict checks run, by trigger.",
	}, []string{"trigger"})

	conflictsFoundTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oncallbot_conflicts_found_total",
		Help: "On-call/holiday conflicts found across all checks.",
	})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oncallbot_upstream_request_duration_seconds",
		Help:    "Histogram of latencies for upstream API requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"api"})
)
