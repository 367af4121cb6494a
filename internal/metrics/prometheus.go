// Package metrics provides Prometheus metrics for the document pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PartsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qhd_parts_processed_total",
			Help: "Parts run through the pipeline, by outcome",
		},
		[]string{"process", "doc_type", "status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qhd_stage_duration_seconds",
			Help:    "Time spent per pipeline stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"process", "stage"},
	)

	SegmentRows = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qhd_segment_rows",
			Help:    "Rows per segment",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
		[]string{"process", "stream"},
	)

	DegenerateSegments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qhd_degenerate_segments_total",
			Help: "Empty segments replaced by a single zero row",
		},
		[]string{"process", "stream"},
	)

	PublishAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qhd_publish_attempts_total",
			Help: "Gateway submissions, by classified result",
		},
		[]string{"doc_type", "result"},
	)

	FailuresLogged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qhd_failures_logged_total",
			Help: "Entries appended to the failure log",
		},
		[]string{"process", "error_type"},
	)
)

// Recorder records pipeline metrics for one process type.
type Recorder struct {
	process string
}

// NewRecorder creates a recorder for a process type.
func NewRecorder(process string) *Recorder {
	return &Recorder{process: process}
}

// Stage observes the duration of one stage since start.
func (r *Recorder) Stage(stage string, start time.Time) {
	StageDuration.WithLabelValues(r.process, stage).Observe(time.Since(start).Seconds())
}

// Part counts a finished part.
func (r *Recorder) Part(docType, status string) {
	PartsProcessed.WithLabelValues(r.process, docType, status).Inc()
}

// Segment records the size of one segment.
func (r *Recorder) Segment(stream string, rows int, degenerate bool) {
	SegmentRows.WithLabelValues(r.process, stream).Observe(float64(rows))
	if degenerate {
		DegenerateSegments.WithLabelValues(r.process, stream).Inc()
	}
}

// Failure counts a failure-log entry.
func (r *Recorder) Failure(errorType string) {
	FailuresLogged.WithLabelValues(r.process, errorType).Inc()
}

// Publish counts one gateway submission.
func Publish(docType, result string) {
	PublishAttempts.WithLabelValues(docType, result).Inc()
}
