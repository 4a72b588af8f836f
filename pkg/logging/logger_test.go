package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func newJSONLogger(buf *bytes.Buffer, level Level) Logger {
	return NewLogger(&Config{
		Level:       level,
		ServiceName: "penf-transcripts",
		Environment: "testing",
		JSONFormat:  true,
		Output:      buf,
	})
}

// entries decodes one JSON object per line.
func entries(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("failed to parse log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLogger_JSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newJSONLogger(buf, LevelDebug)

	log.Info("Transcript normalized", F("format", "vtt"), F("entries", 12))

	got := entries(t, buf)
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	e := got[0]
	if e["message"] != "Transcript normalized" {
		t.Errorf("expected message, got %v", e["message"])
	}
	if e["service_name"] != "penf-transcripts" {
		t.Errorf("expected service_name, got %v", e["service_name"])
	}
	if e["environment"] != "testing" {
		t.Errorf("expected environment, got %v", e["environment"])
	}
	if e["format"] != "vtt" {
		t.Errorf("expected format 'vtt', got %v", e["format"])
	}
	if e["entries"] != float64(12) {
		t.Errorf("expected entries 12, got %v", e["entries"])
	}
	if e["level"] != "info" {
		t.Errorf("expected level 'info', got %v", e["level"])
	}
	if _, ok := e["time"]; !ok {
		t.Error("expected timestamp field 'time'")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newJSONLogger(buf, LevelWarn)

	log.Debug("dropped")
	log.Info("dropped")
	log.Warn("kept")
	log.Error("kept")

	got := entries(t, buf)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries at warn level, got %d: %s", len(got), buf.String())
	}
	if got[0]["level"] != "warn" || got[1]["level"] != "error" {
		t.Errorf("unexpected levels: %v, %v", got[0]["level"], got[1]["level"])
	}
}

func TestLogger_LevelIsPerLogger(t *testing.T) {
	quiet := &bytes.Buffer{}
	verbose := &bytes.Buffer{}
	newJSONLogger(quiet, LevelError)
	v := newJSONLogger(verbose, LevelDebug)

	v.Debug("still logged")

	if len(entries(t, verbose)) != 1 {
		t.Error("creating a second logger should not change the first one's level")
	}
}

func TestLogger_FieldTypes(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newJSONLogger(buf, LevelInfo)

	log.Info("types",
		F("path", "a.vtt"),
		F("bytes", int64(2048)),
		F("ratio", 0.25),
		F("persist", true),
		F("elapsed", 1500*time.Millisecond),
		Err(errors.New("boom")))

	e := entries(t, buf)[0]
	if e["path"] != "a.vtt" {
		t.Errorf("string field: got %v", e["path"])
	}
	if e["bytes"] != float64(2048) {
		t.Errorf("int64 field: got %v", e["bytes"])
	}
	if e["ratio"] != 0.25 {
		t.Errorf("float field: got %v", e["ratio"])
	}
	if e["persist"] != true {
		t.Errorf("bool field: got %v", e["persist"])
	}
	if _, ok := e["elapsed"].(float64); !ok {
		t.Errorf("duration should be numeric, got %T", e["elapsed"])
	}
	if e["error"] != "boom" {
		t.Errorf("error field: got %v", e["error"])
	}
}

func TestLogger_With(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newJSONLogger(buf, LevelInfo).With(F("component", "watcher"))

	log.Info("first")
	log.Info("second", F("path", "b.srt"))

	got := entries(t, buf)
	for i, e := range got {
		if e["component"] != "watcher" {
			t.Errorf("entry %d: expected component, got %v", i, e["component"])
		}
	}
	if got[1]["path"] != "b.srt" {
		t.Errorf("expected per-call field on second entry, got %v", got[1]["path"])
	}
}

func TestLogger_WithContext_PipelineIDs(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newJSONLogger(buf, LevelInfo)

	ctx := WithRequestID(context.Background(), "host/abc-000001")
	ctx = WithCorrelationID(ctx, "corr-1")
	ctx = WithJobID(ctx, "jb-00000001")
	log.WithContext(ctx).Info("stored")

	e := entries(t, buf)[0]
	if e["request_id"] != "host/abc-000001" {
		t.Errorf("expected request_id, got %v", e["request_id"])
	}
	if e["correlation_id"] != "corr-1" {
		t.Errorf("expected correlation_id, got %v", e["correlation_id"])
	}
	if e["job_id"] != "jb-00000001" {
		t.Errorf("expected job_id, got %v", e["job_id"])
	}
	if _, ok := e["trace_id"]; ok {
		t.Error("expected no trace_id without a span")
	}
}

func TestLogger_WithContext_OtelSpan(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newJSONLogger(buf, LevelInfo)

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	log.WithContext(ctx).Info("span request")

	if got := entries(t, buf)[0]["trace_id"]; got != "0102030405060708090a0b0c0d0e0f10" {
		t.Errorf("expected trace_id from span context, got %v", got)
	}
}

func TestContextIDs(t *testing.T) {
	ctx := context.Background()
	if CorrelationID(ctx) != "" || JobID(ctx) != "" {
		t.Error("expected empty ids on a bare context")
	}

	ctx = WithCorrelationID(WithJobID(ctx, "jb-1"), "c-1")
	if CorrelationID(ctx) != "c-1" {
		t.Errorf("CorrelationID = %q", CorrelationID(ctx))
	}
	if JobID(ctx) != "jb-1" {
		t.Errorf("JobID = %q", JobID(ctx))
	}

	if WithJobID(ctx, "") != ctx {
		t.Error("empty id should leave the context unchanged")
	}
}

func TestLogger_ConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(&Config{Level: LevelInfo, Output: buf, NoColor: true})

	log.Warn("Transcript rejected", F("code", "too_short"))

	out := buf.String()
	if !strings.Contains(out, "Transcript rejected") || !strings.Contains(out, "code=too_short") {
		t.Errorf("unexpected console output: %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("expected no ANSI codes with NoColor")
	}
}

func TestNewLogger_NilConfig(t *testing.T) {
	if NewLogger(nil) == nil {
		t.Error("expected non-nil logger with nil config")
	}
}

func TestNopLogger(t *testing.T) {
	log := NewNopLogger()
	log.Info("discarded", F("k", "v"))
	if log.With(F("a", 1)) == nil || log.WithContext(context.Background()) == nil {
		t.Error("nop logger should return itself")
	}
}
