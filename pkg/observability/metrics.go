// Package observability provides Prometheus metrics for the gemweb service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// UIBuckets defines histogram buckets suited for web-UI round trips, from
// one second to five minutes.
var UIBuckets = []float64{1, 2, 5, 10, 30, 60, 120, 300}

var (
	// RequestsTotal counts completion requests by HTTP status and model.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemweb_requests_total",
			Help: "Completion requests",
		},
		[]string{"status", "model"},
	)

	// RequestDuration records completion request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gemweb_request_duration_seconds",
			Help:    "Completion request duration",
			Buckets: UIBuckets,
		},
		[]string{"model"},
	)

	// QueueDepth tracks requests waiting for the browser slot.
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gemweb_queue_depth",
			Help: "Requests queued for the browser session",
		},
	)

	// ActiveSlot is 1 while a job is driving the browser.
	ActiveSlot = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gemweb_active_slot",
			Help: "Whether a job currently holds the browser slot",
		},
	)

	// SubmissionsTotal counts browser submissions by outcome
	// (ok, timeout, ui_changed, logged_out, error).
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemweb_browser_submissions_total",
			Help: "Browser submissions",
		},
		[]string{"outcome"},
	)

	// ToolParsesTotal counts tool-call decode attempts by outcome
	// (parsed, degraded, none).
	ToolParsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemweb_tool_parses_total",
			Help: "Tool-call parse outcomes",
		},
		[]string{"outcome"},
	)

	// LoginCyclesTotal counts interactive login flows by result.
	LoginCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemweb_login_cycles_total",
			Help: "Interactive login flows",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		QueueDepth,
		ActiveSlot,
		SubmissionsTotal,
		ToolParsesTotal,
		LoginCyclesTotal,
	)
}
