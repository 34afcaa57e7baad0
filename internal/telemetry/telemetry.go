package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level collectors for the detection pipeline. Exposed over the
// server's /metrics endpoint via promhttp.
var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slanderwatch",
		Name:      "runs_total",
		Help:      "Detection runs by final status.",
	}, []string{"status"})

	SourceRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slanderwatch",
		Name:      "source_requests_total",
		Help:      "Platform search requests by platform and outcome.",
	}, []string{"platform", "outcome"})

	SourceRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "slanderwatch",
		Name:      "source_request_duration_seconds",
		Help:      "Platform search latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"platform"})

	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slanderwatch",
		Name:      "analyses_total",
		Help:      "Per-snippet LLM analyses by outcome.",
	}, []string{"outcome"})

	EvidenceCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slanderwatch",
		Name:      "evidence_collected_total",
		Help:      "Evidence snippets collected by platform.",
	}, []string{"platform"})
)

// ObserveSource records one platform search.
func ObserveSource(platform string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	SourceRequestsTotal.WithLabelValues(platform, outcome).Inc()
	SourceRequestDuration.WithLabelValues(platform).Observe(time.Since(start).Seconds())
}
