package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postreview_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "postreview_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	PostLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postreview_post_loads_total",
			Help: "Post list fetches by outcome (ok, error, stale)",
		},
		[]string{"result"},
	)

	ReviewDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postreview_review_decisions_total",
			Help: "Posts approved or sent back for adjustments",
		},
		[]string{"decision"},
	)

	FeedbackWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "postreview_feedback_write_failures_total",
			Help: "Feedback entries that could not be recorded after a status change",
		},
	)

	RealtimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postreview_realtime_events_total",
			Help: "Change notifications received from the database",
		},
		[]string{"table", "type"},
	)

	RealtimeDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "postreview_realtime_dropped_total",
			Help: "Change notifications dropped because a subscriber was full",
		},
	)

	Uploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postreview_uploads_total",
			Help: "Attachment uploads by kind and outcome",
		},
		[]string{"kind", "result"},
	)

	SignIns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postreview_sign_ins_total",
			Help: "Password sign-in attempts by outcome",
		},
		[]string{"result"},
	)

	ActiveWorkspaces = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "postreview_active_workspaces",
			Help: "Signed-in reviewer sessions held by the gateway",
		},
	)
)
