// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Total number of notification records persisted by the dispatcher",
		},
		[]string{"kind"},
	)

	DispatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatch_failures_total",
			Help: "Total number of failed dispatches",
		},
		[]string{"kind", "error_code"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "notification_dispatch_duration_seconds",
			Help: "Duration of dispatch processing in seconds",
		},
		[]string{"kind"},
	)

	StreamEventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_stream_events_applied_total",
			Help: "Total number of row events reconciled into client sessions",
		},
		[]string{"event"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_sessions_active",
			Help: "Number of connected client notification sessions",
		},
	)

	OptimisticWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_optimistic_write_failures_total",
			Help: "Store confirmation failures for fire-and-forget local mutations",
		},
	)
)
