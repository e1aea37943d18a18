package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AuditRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labtrail_audit_records_total",
		Help: "The total number of audit log records written",
	}, []string{"kind"})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labtrail_user_notifications_total",
		Help: "The total number of user notifications materialized",
	}, []string{"outcome"})

	PushAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labtrail_push_attempts_total",
		Help: "Realtime push delivery attempts by outcome",
	}, []string{"outcome"})

	PushQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "labtrail_push_queue_depth",
		Help: "Realtime push events currently queued",
	})

	PushDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labtrail_push_dropped_total",
		Help: "Realtime push events dropped because the queue was full",
	})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "labtrail_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
