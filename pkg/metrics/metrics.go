// Package metrics defines the Prometheus instruments exposed on /metrics.
// All instruments register against the default registry at init, so any
// package can import this one and record without wiring.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsIngested counts sessions created or resumed through the
	// ingest endpoint.
	SessionsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "argus",
		Name:      "sessions_ingested_total",
		Help:      "Total sessions created or resumed via ingest",
	})

	// StepsRecorded counts step records appended to sessions.
	StepsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "argus",
		Name:      "steps_recorded_total",
		Help:      "Total step records appended to sessions",
	})

	// IssuesDetected counts quality issues arriving in completion payloads.
	// Labels: issue_type (TASK_DRIFT, INFINITE_LOOP, PROMPT_INJECTION, ...)
	IssuesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "argus",
		Name:      "issues_detected_total",
		Help:      "Total quality issues recorded, by issue type",
	}, []string{"issue_type"})

	// Broadcasts counts WebSocket fan-outs (session updates and periodic
	// state refreshes).
	Broadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "argus",
		Name:      "broadcasts_total",
		Help:      "Total WebSocket broadcast fan-outs",
	})

	// StoreWriteFailures counts failed session log writes.
	StoreWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "argus",
		Name:      "store_write_failures_total",
		Help:      "Total failed writes to the session log store",
	})

	// JudgeRequests counts judge round trips.
	// Labels: kind (step, session, shadow), outcome (ok, error)
	JudgeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "argus",
		Name:      "judge_requests_total",
		Help:      "Total AI judge requests, by kind and outcome",
	}, []string{"kind", "outcome"})

	// HTTPRequests counts completed API requests.
	// Labels: method, status
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "argus",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests served, by method and status code",
	}, []string{"method", "status"})

	// WSConnections tracks currently connected WebSocket clients.
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "argus",
		Name:      "ws_connections",
		Help:      "Currently connected WebSocket dashboard clients",
	})

	// JudgeLatency measures judge round-trip time.
	JudgeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "argus",
		Name:      "judge_latency_seconds",
		Help:      "AI judge request latency in seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})
)

// ObserveJudge records one judge round trip: a labelled request count and
// its latency.
func ObserveJudge(kind string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	JudgeRequests.WithLabelValues(kind, outcome).Inc()
	JudgeLatency.Observe(time.Since(start).Seconds())
}
