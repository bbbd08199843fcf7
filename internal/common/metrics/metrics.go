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
			Help: "Total number of notification rows created",
		},
		[]string{"notification_type", "source"},
	)

	NotificationsMarkedSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_marked_sent_total",
			Help: "Total number of notifications acknowledged by the dispatcher",
		},
	)

	ReminderScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_scans_total",
			Help: "Total number of reminder scan invocations",
		},
		[]string{"scan"},
	)

	RemindersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reminders_created_total",
			Help: "Total number of reminder notifications created by the scans",
		},
	)

	ReminderScanFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_scan_failures_total",
			Help: "Total number of reminder scans aborted by a query failure",
		},
		[]string{"scan"},
	)

	DispatchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_attempts_total",
			Help: "Total number of delivery attempts by channel",
		},
		[]string{"channel", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "route", "status"},
	)

	CountsCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "counts_cache_requests_total",
			Help: "Unread-counts cache lookups by outcome",
		},
		[]string{"outcome"},
	)
)
