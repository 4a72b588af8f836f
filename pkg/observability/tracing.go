package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of transcript spans.
const TracerName = "penf-transcripts"

// Span attribute keys
const (
	AttrFormat       = "transcript.format"
	AttrRule         = "transcript.detect_rule"
	AttrBytes        = "transcript.bytes"
	AttrEntries      = "transcript.entries"
	AttrParticipants = "transcript.participants"
	AttrTranscriptID = "transcript.id"
	AttrSourcePath   = "transcript.source_path"
	AttrJobID        = "ingest.job_id"
	AttrErrorCode    = "error.code"
	AttrRetryable    = "error.retryable"
)

// Span names
const (
	SpanProcess   = "transcripts.process"
	SpanValidate  = "transcripts.validate"
	SpanNormalize = "transcripts.normalize"
	SpanPersist   = "transcripts.persist"
	SpanPublish   = "transcripts.publish"
	SpanIngestJob = "transcripts.ingest_job"
)

// Tracer starts transcript pipeline spans on the global provider.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global otel provider.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(TracerName)}
}

// Start starts a named span with optional attributes.
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartProcess starts the root span for one transcript.
func (t *Tracer) StartProcess(ctx context.Context, sourcePath string, size int) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.Int(AttrBytes, size)}
	if sourcePath != "" {
		attrs = append(attrs, attribute.String(AttrSourcePath, sourcePath))
	}
	return t.Start(ctx, SpanProcess, attrs...)
}

// StartIngestJob starts the root span of a batch job.
func (t *Tracer) StartIngestJob(ctx context.Context, jobID string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanIngestJob, attribute.String(AttrJobID, jobID))
}

// SpanHelper wraps a span with domain setters.
type SpanHelper struct {
	span trace.Span
}

// NewSpanHelper creates a new span helper for the given span.
func NewSpanHelper(span trace.Span) *SpanHelper {
	return &SpanHelper{span: span}
}

// SetDetection records the detected format and the rule that chose it.
func (h *SpanHelper) SetDetection(format, rule string) {
	h.span.SetAttributes(
		attribute.String(AttrFormat, format),
		attribute.String(AttrRule, rule),
	)
}

// SetResult records normalization counts.
func (h *SpanHelper) SetResult(entries, participants int) {
	h.span.SetAttributes(
		attribute.Int(AttrEntries, entries),
		attribute.Int(AttrParticipants, participants),
	)
}

// SetTranscriptID records the stored transcript id.
func (h *SpanHelper) SetTranscriptID(id string) {
	h.span.SetAttributes(attribute.String(AttrTranscriptID, id))
}

// SetError records an error on the span.
func (h *SpanHelper) SetError(err error, code string, retryable bool) {
	h.span.SetStatus(codes.Error, err.Error())
	h.span.SetAttributes(
		attribute.String(AttrErrorCode, code),
		attribute.Bool(AttrRetryable, retryable),
	)
	h.span.RecordError(err)
}

// SetSuccess marks the span as successful.
func (h *SpanHelper) SetSuccess() {
	h.span.SetStatus(codes.Ok, "")
}

// TraceID returns the trace ID from the context, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
