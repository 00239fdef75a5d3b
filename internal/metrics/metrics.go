// SPDX-License-Identifier: MIT

// Package metrics exposes the Prometheus instrumentation for catalog
// traffic, recordings and the worker pool.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CatalogRequests tracks catalog API calls by endpoint and outcome.
	CatalogRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aircheck_catalog_requests_total",
		Help: "Total number of catalog API requests by endpoint and result",
	}, []string{"endpoint", "result"})

	// CatalogRequestDuration tracks catalog API latency per endpoint.
	CatalogRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aircheck_catalog_request_duration_seconds",
		Help:    "Catalog API request latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
	}, []string{"endpoint"})

	// CatalogCache tracks catalog response cache hits and misses.
	CatalogCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aircheck_catalog_cache_total",
		Help: "Catalog cache lookups by result",
	}, []string{"result"})

	// Recordings tracks finished recording tasks by outcome.
	Recordings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aircheck_recordings_total",
		Help: "Total number of finished recordings by result and reason",
	}, []string{"result", "reason"})

	// RecordingBytes tracks the size of recorded files.
	RecordingBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aircheck_recording_bytes",
		Help:    "Bytes written per recording",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	})

	// RecordingDuration tracks the wall time of recording tasks.
	RecordingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aircheck_recording_duration_seconds",
		Help:    "Wall time per recording",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	})

	// PoolTasks tracks worker pool task flow.
	PoolTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aircheck_pool_tasks_total",
		Help: "Worker pool tasks by state",
	}, []string{"state"})
)

// ObserveCatalogRequest records one catalog API call.
func ObserveCatalogRequest(endpoint string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	CatalogRequests.WithLabelValues(endpoint, result).Inc()
	CatalogRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// IncCatalogCache records a cache lookup outcome.
func IncCatalogCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CatalogCache.WithLabelValues(result).Inc()
}

// IncRecording records a finished recording task outcome.
func IncRecording(reason string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	Recordings.WithLabelValues(result, reason).Inc()
}

// ObserveRecording records size and wall time of a recording that
// produced a file.
func ObserveRecording(bytes int64, duration time.Duration) {
	RecordingBytes.Observe(float64(bytes))
	RecordingDuration.Observe(duration.Seconds())
}

// IncPoolSubmitted counts a task accepted by the pool.
func IncPoolSubmitted() {
	PoolTasks.WithLabelValues("submitted").Inc()
}

// IncPoolCompleted counts a task a worker finished running.
func IncPoolCompleted() {
	PoolTasks.WithLabelValues("completed").Inc()
}
