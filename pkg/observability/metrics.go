// Package observability holds the Prometheus metrics and OpenTelemetry spans
// emitted by the transcript pipeline.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "penf_transcripts"

// Transcript outcomes used as the "status" label.
const (
	StatusNormalized = "normalized"
	StatusDuplicate  = "duplicate"
	StatusRejected   = "rejected"
	StatusFailed     = "failed"
)

// Metrics holds all Prometheus metrics for the transcript pipeline.
type Metrics struct {
	// Pipeline metrics
	TranscriptsTotal   *prometheus.CounterVec
	DetectionsTotal    *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec
	StageSeconds       *prometheus.HistogramVec
	EntriesPerDoc      *prometheus.HistogramVec
	ParticipantsPerDoc *prometheus.HistogramVec

	// Surface metrics
	HTTPRequestSeconds *prometheus.HistogramVec
	IngestFilesTotal   *prometheus.CounterVec
	WatchEventsTotal   *prometheus.CounterVec
}

// NewMetrics registers the pipeline metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TranscriptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "transcripts_total",
				Help:      "Transcripts processed by outcome",
			},
			[]string{"format", "status"},
		),
		DetectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "detections_total",
				Help:      "Format detections by format and deciding rule",
			},
			[]string{"format", "rule"},
		),
		ValidationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "validation_failures_total",
				Help:      "Rejected transcripts by validation code",
			},
			[]string{"code"},
		),
		StageSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "stage_seconds",
				Help:      "Latency per pipeline stage",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"stage"},
		),
		EntriesPerDoc: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "entries_per_transcript",
				Help:      "Parsed entries per transcript",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"format"},
		),
		ParticipantsPerDoc: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "participants_per_transcript",
				Help:      "Extracted participants per transcript",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
			},
			[]string{"format"},
		),
		HTTPRequestSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "http_request_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method", "code"},
		),
		IngestFilesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "ingest_files_total",
				Help:      "Files handled by batch ingest by outcome",
			},
			[]string{"outcome"},
		),
		WatchEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "watch_events_total",
				Help:      "Filesystem events handled by the directory watcher",
			},
			[]string{"op"},
		),
	}
}

// Record methods are no-ops on a nil *Metrics.

// RecordDetection records which rule decided a format.
func (m *Metrics) RecordDetection(format, rule string) {
	if m == nil {
		return
	}
	m.DetectionsTotal.WithLabelValues(format, rule).Inc()
}

// RecordValidationFailure records a rejected transcript.
func (m *Metrics) RecordValidationFailure(code string) {
	if m == nil {
		return
	}
	m.ValidationFailures.WithLabelValues(code).Inc()
}

// RecordStage records the latency of one pipeline stage.
func (m *Metrics) RecordStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordTranscript records the outcome of one transcript. Entry and participant
// counts are only observed for normalized transcripts.
func (m *Metrics) RecordTranscript(format, status string, entries, participants int) {
	if m == nil {
		return
	}
	m.TranscriptsTotal.WithLabelValues(format, status).Inc()
	if status == StatusNormalized {
		m.EntriesPerDoc.WithLabelValues(format).Observe(float64(entries))
		m.ParticipantsPerDoc.WithLabelValues(format).Observe(float64(participants))
	}
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(route, method, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestSeconds.WithLabelValues(route, method, code).Observe(d.Seconds())
}

// RecordIngestFile records the outcome of one batch ingest file.
func (m *Metrics) RecordIngestFile(outcome string) {
	if m == nil {
		return
	}
	m.IngestFilesTotal.WithLabelValues(outcome).Inc()
}

// RecordWatchEvent records a handled filesystem event.
func (m *Metrics) RecordWatchEvent(op string) {
	if m == nil {
		return
	}
	m.WatchEventsTotal.WithLabelValues(op).Inc()
}
