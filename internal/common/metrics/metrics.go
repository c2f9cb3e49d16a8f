// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_transitions_total",
			Help: "Total number of successful workflow transitions",
		},
		[]string{"operation"},
	)

	TransitionsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_transitions_failed_total",
			Help: "Total number of rejected workflow transitions",
		},
		[]string{"operation", "error_code"},
	)

	TransitionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "review_transition_duration_seconds",
			Help: "Duration of workflow transitions in seconds",
		},
		[]string{"operation"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "review_queue_depth",
			Help: "Open work items per review stage",
		},
		[]string{"stage"},
	)

	OverdueWorkItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "review_work_items_overdue",
			Help: "Open work items past their SLA deadline per stage",
		},
		[]string{"stage"},
	)

	AutoAssignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_auto_assignments_total",
			Help: "Auto-assignment attempts by outcome (assigned or deferred)",
		},
		[]string{"stage", "outcome"},
	)

	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_notifications_dispatched_total",
			Help: "Notification dispatch attempts by event, channel and status",
		},
		[]string{"event", "channel", "status"},
	)
)
